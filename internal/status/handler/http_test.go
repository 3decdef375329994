package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Starlight90415/O-quvbot/internal/platform/metrics"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

func TestIndex(t *testing.T) {
	srv := httptest.NewServer(NewHandler(nil, nil, nil).Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{"O'quv Davomat Bot Server", "/davomat", "/hisobot"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page does not contain %q", want)
		}
	}
}

func TestHealth(t *testing.T) {
	testCases := []struct {
		name       string
		pinger     Pinger
		wantCode   int
		wantStatus string
	}{
		{"no pinger", nil, http.StatusOK, statusOK},
		{"store up", &mockPinger{}, http.StatusOK, statusOK},
		{"store down", &mockPinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, statusUnhealthy},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(tc.pinger, nil, nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if rec.Code != tc.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tc.wantCode)
			}
			var got healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if got.Status != tc.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tc.wantStatus)
			}
			if got.Timestamp == "" {
				t.Error("timestamp is empty")
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	m.Command("start")

	rec := httptest.NewRecorder()
	NewHandler(nil, m.Handler(), nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `oquvbot_commands_total{command="start"} 1`) {
		t.Errorf("metrics body missing command counter:\n%s", rec.Body.String())
	}
}

func TestMetrics_NotRoutedWithoutHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, nil, nil).Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d, want 404", rec.Code)
	}
}
