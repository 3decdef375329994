// Server runs the Telegram bot together with the status page and the gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/Starlight90415/O-quvbot/internal/bot"
	"github.com/Starlight90415/O-quvbot/internal/config"
	"github.com/Starlight90415/O-quvbot/internal/conversation"
	"github.com/Starlight90415/O-quvbot/internal/db"
	"github.com/Starlight90415/O-quvbot/internal/db/migrate"
	"github.com/Starlight90415/O-quvbot/internal/platform/logging"
	"github.com/Starlight90415/O-quvbot/internal/platform/metrics"
	"github.com/Starlight90415/O-quvbot/internal/records/repository"
	recordservice "github.com/Starlight90415/O-quvbot/internal/records/service"
	reportservice "github.com/Starlight90415/O-quvbot/internal/report/service"
	"github.com/Starlight90415/O-quvbot/internal/server"
	"github.com/Starlight90415/O-quvbot/internal/sheet"
	statushandler "github.com/Starlight90415/O-quvbot/internal/status/handler"
	"github.com/Starlight90415/O-quvbot/internal/telemetry"
	telemetryotel "github.com/Starlight90415/O-quvbot/internal/telemetry/otel"
	"github.com/Starlight90415/O-quvbot/internal/telemetry/producer"
)

const (
	sessionSweepInterval = time.Minute
	shutdownTimeout      = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Encoding: cfg.LogEncoding, FilePath: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Env,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()

	m := metrics.New()

	dial, err := storeDialer(cfg, log)
	if err != nil {
		return err
	}
	conn := sheet.NewConn(dial, sheet.WithLogger(log.Named("store")), sheet.WithReconnectHook(m.Reconnect))
	if err := conn.Ping(ctx); err != nil {
		// Writer and Builder reconnect on demand.
		log.Warn("table store not reachable at startup", zap.Error(err))
	}

	eventProducer, err := producer.New(cfg.KafkaBrokersList(), cfg.RecordEventsTopic)
	if err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	emitters := []telemetry.EventEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if eventProducer != nil {
		emitters = append(emitters, eventProducer)
		log.Info("publishing record events", zap.Strings("brokers", cfg.KafkaBrokersList()), zap.String("topic", cfg.RecordEventsTopic))
	}

	loc := cfg.Location()
	repo := repository.NewSheetRepository(conn, repository.TableNames{
		Attendance: cfg.AttendanceTable,
		Students:   cfg.StudentsTable,
		Payments:   cfg.PaymentsTable,
	})
	writer := recordservice.NewWriter(repo, conn,
		recordservice.WithLogger(log.Named("records")),
		recordservice.WithEmitter(telemetry.NewMulti(emitters...)),
		recordservice.WithMetrics(m),
		recordservice.WithClock(func() time.Time { return time.Now().In(loc) }),
	)
	builder := reportservice.NewBuilder(repo, conn, reportservice.WithLogger(log.Named("report")))

	sessions := conversation.NewMemorySessionStore(cfg.SessionTTL())
	sessions.OnExpire(func(s *conversation.Session) {
		m.FlowOutcome(string(s.Flow), metrics.OutcomeExpired)
		log.Info("conversation expired", zap.String("user_id", s.UserID), zap.String("session_id", s.ID), zap.String("flow", string(s.Flow)))
	})
	go sessions.RunSweeper(ctx, sessionSweepInterval)
	engine := conversation.NewEngine(sessions, writer,
		conversation.WithLogger(log.Named("conversation")),
		conversation.WithMetrics(m),
	)

	api, err := bot.NewTelegramAPI(cfg.TelegramToken, cfg.TelegramDebug, log)
	if err != nil {
		return err
	}
	dispatcher := bot.NewDispatcher(engine, writer, builder, bot.NewTelegramSender(api),
		bot.WithLogger(log.Named("bot")),
		bot.WithMetrics(m),
	)
	executor := bot.NewExecutor(log.Named("executor"))
	poller := bot.NewPoller(api, dispatcher, executor, cfg.TelegramPollTimeout, log.Named("poller"))

	statusSrv := &http.Server{
		Addr:              cfg.StatusHTTPAddr,
		Handler:           statushandler.NewHandler(conn, m.Handler(), log.Named("status")).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}
	go func() {
		log.Info("status page listening", zap.String("addr", cfg.StatusHTTPAddr))
		if err := statusSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("status page stopped", zap.Error(err))
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
		grpcServer = server.NewGRPCServer(server.Deps{HealthPinger: conn, Logger: log.Named("grpc")})
		go func() {
			log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("gRPC server stopped", zap.Error(err))
			}
		}()
	}

	pollErr := poller.Run(ctx)
	if pollErr != nil {
		log.Error("telegram polling stopped", zap.Error(pollErr))
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := executor.Shutdown(shutdownCtx); err != nil {
		log.Warn("pending updates not drained", zap.Int("users", executor.Pending()), zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := statusSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("status page shutdown", zap.Error(err))
	}

	// Let async record events started by the last updates finish.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if eventProducer != nil {
		if err := eventProducer.Close(); err != nil {
			log.Warn("kafka producer close", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("otel shutdown", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		log.Warn("table store close", zap.Error(err))
	}
	log.Info("server stopped")
	return pollErr
}

// storeDialer returns the dialer for the configured backend. The postgres dialer opens a new
// pool on every (re)connect; migrations run once here when AUTO_MIGRATE is set.
func storeDialer(cfg *config.Config, log *zap.Logger) (sheet.Dialer, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory table store; records are lost on restart")
		mem := sheet.NewMemoryStore()
		return func(context.Context) (sheet.Store, error) { return mem.Reopen(), nil }, nil
	case config.StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER is postgres")
		}
		if cfg.AutoMigrate {
			if err := migrate.Run(cfg.DatabaseURL, migrate.Up, log.Named("migrate")); err != nil {
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		return func(ctx context.Context) (sheet.Store, error) {
			database, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			return sheet.NewPostgresStore(database), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
