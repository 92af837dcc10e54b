package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crash_watcher/internal/config"
	"crash_watcher/internal/monthly"
	"crash_watcher/internal/roadway"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, wazeURL string) config.Config {
	t.Helper()
	dir := t.TempDir()
	roads := roadway.Defaults()
	for i := range roads {
		roads[i].Credentials = roadway.Credentials{Handle: "h", AppPassword: "p"}
		roads[i].Files = roadway.Files{
			Seen:    filepath.Join(dir, roads[i].Files.Seen),
			Prompts: filepath.Join(dir, roads[i].Files.Prompts),
			Monthly: filepath.Join(dir, roads[i].Files.Monthly),
		}
	}
	return config.Config{
		RapidAPIKey:         "key",
		WazeBaseURL:         wazeURL,
		AuditDBPath:         filepath.Join(dir, "audit.db"),
		MetricsTextfile:     filepath.Join(dir, "crashwatch.prom"),
		Location:            time.UTC,
		PurgeThreshold:      24 * time.Hour,
		DuplicateDistanceKm: 1,
		DuplicateWindow:     45 * time.Minute,
		MaxRecentPrompts:    12,
		ReportCutoff:        monthly.DefaultCutoff,
		BoundingBox:         config.DefaultBoundingBox,
		Roadways:            roads,
	}
}

func emptyFeed(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alerts-and-jams" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","data":{"alerts":[],"jams":[]}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSingleRunWritesMetricsAndAudit(t *testing.T) {
	cfg := testConfig(t, emptyFeed(t).URL)
	a, err := New(cfg, quiet())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if st := a.Status(); st.Runs != 1 || st.Summary.RunID == "" {
		t.Fatalf("unexpected status %+v", st)
	}
	data, err := os.ReadFile(cfg.MetricsTextfile)
	if err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
	if !strings.Contains(string(data), "crashwatch_feed_alerts 0") {
		t.Fatalf("unexpected metrics textfile:\n%s", data)
	}
	runs, err := a.store.ListRuns(context.Background(), 5)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one audited run, got %+v %v", runs, err)
	}
}

func TestReloadKeepsPreviousConfigOnError(t *testing.T) {
	cfg := testConfig(t, emptyFeed(t).URL)
	cfg.AuditDBPath = ""
	a, err := New(cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}

	a.load = func(*slog.Logger) (config.Config, error) {
		return config.Config{}, config.ErrMissingCredentials
	}
	a.Reload()
	if got := a.config(); got.RapidAPIKey != "key" {
		t.Fatalf("config replaced by invalid reload: %+v", got)
	}

	next := cfg
	next.DuplicateDistanceKm = 2.5
	a.load = func(*slog.Logger) (config.Config, error) { return next, nil }
	a.Reload()
	if got := a.config(); got.DuplicateDistanceKm != 2.5 {
		t.Fatalf("reload not applied, distance %v", got.DuplicateDistanceKm)
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	cfg := testConfig(t, emptyFeed(t).URL)
	cfg.AuditDBPath = ""
	cfg.RunInterval = 20 * time.Millisecond
	cfg.ConfigPath = filepath.Join(t.TempDir(), "config.yaml")
	a, err := New(cfg, quiet())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("loop returned %v", err)
	}
	if a.Status().Runs < 2 {
		t.Fatalf("expected several runs, got %d", a.Status().Runs)
	}
}
