package migrate

import (
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/Starlight90415/O-quvbot/internal/db"
	"go.uber.org/zap"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", Up, nil)
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %q, should mention DATABASE_URL", err.Error())
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "invalid", "UP", "Down", "both"} {
		t.Run(direction, func(t *testing.T) {
			err := Run("postgres://localhost/test", direction, nil)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error = %q, should mention direction", err.Error())
			}
		})
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://localhost with spaces/test"} {
		if err := Run(dsn, Up, nil); err == nil {
			t.Errorf("Run with invalid DSN %q should return error", dsn)
		}
	}
}

func TestMigrationFS_HasPairedFiles(t *testing.T) {
	entries, err := fs.ReadDir(db.MigrationFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	if ups == 0 || ups != downs {
		t.Errorf("up=%d down=%d, want equal and non-zero", ups, downs)
	}
}

func TestRun_UpDownIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := Run(dsn, Up, zap.NewNop()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	// Already at the latest version: ErrNoChange is swallowed.
	if err := Run(dsn, Up, zap.NewNop()); err != nil {
		t.Fatalf("second Up: %v", err)
	}
}
