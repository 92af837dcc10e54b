package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crash_watcher/internal/roadway"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setCredentials(t *testing.T) {
	t.Helper()
	t.Setenv("RAPIDAPI_KEY", "rapid")
	t.Setenv("BLUESKY_HANDLE_ROUTE28", "route28.bsky.social")
	t.Setenv("BLUESKY_APP_PASSWORD_ROUTE28", "pw1")
	t.Setenv("BLUESKY_HANDLE_PARKWAYEAST", "parkway.bsky.social")
	t.Setenv("BLUESKY_APP_PASSWORD_PARKWAYEAST", "pw2")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
}

func TestLoadDefaults(t *testing.T) {
	setCredentials(t)
	dir := t.TempDir()
	t.Setenv("STATE_DIR", dir)
	t.Setenv("MONTHLY_STATS_GIF_ROUTE28", "count.gif")

	cfg, err := Load(quiet())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.PurgeThreshold != 24*time.Hour || cfg.DuplicateWindow != 45*time.Minute || cfg.DuplicateDistanceKm != 1 {
		t.Fatalf("unexpected dedup defaults %+v", cfg)
	}
	if cfg.MaxRecentPrompts != 12 || cfg.MaxFeedRetries != 4 || cfg.MaxPostRetries != 3 {
		t.Fatalf("unexpected retry defaults %+v", cfg)
	}
	if cfg.BoundingBox != DefaultBoundingBox {
		t.Fatalf("unexpected bounding box %+v", cfg.BoundingBox)
	}
	if len(cfg.Roadways) != 2 || cfg.Roadways[0].Key != roadway.Route28 {
		t.Fatalf("unexpected roadways %+v", cfg.Roadways)
	}
	r28 := cfg.Roadways[0]
	if r28.Credentials.Handle != "route28.bsky.social" || r28.ReportImagePath != "count.gif" {
		t.Fatalf("credentials not wired: %+v", r28)
	}
	if r28.Files.Seen != filepath.Join(dir, "seen_crashes_route28.json") {
		t.Fatalf("state path not joined: %s", r28.Files.Seen)
	}
	if cfg.AuditDBPath != filepath.Join(dir, "crash_watcher.db") {
		t.Fatalf("unexpected audit path %s", cfg.AuditDBPath)
	}
	if cfg.Location == nil || cfg.RunInterval != 0 {
		t.Fatalf("unexpected location/interval %v %v", cfg.Location, cfg.RunInterval)
	}
}

func TestLoadMissingCredentials(t *testing.T) {
	setCredentials(t)
	t.Setenv("BLUESKY_APP_PASSWORD_PARKWAYEAST", "")
	_, err := Load(quiet())
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
	if !strings.Contains(err.Error(), "Parkway East") {
		t.Fatalf("expected roadway named in error, got %v", err)
	}

	t.Setenv("BLUESKY_APP_PASSWORD_PARKWAYEAST", "pw2")
	t.Setenv("RAPIDAPI_KEY", "")
	if _, err := Load(quiet()); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials for RAPIDAPI_KEY, got %v", err)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	setCredentials(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
purge_threshold_hours: 12
duplicate_distance_km: 0.5
duplicate_time_minutes: 30
max_recent_prompts: 5
report_cutoff: "18:30"
bounding_box: {bottom: 40.3, top: 40.8, left: -80.4, right: -79.5}
roadways:
  - key: ROUTE28
    number_exclusions: ["228", "728"]
    hashtags: "#Route28"
    seen_file: r28_seen.json
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("STATE_DIR", "/var/lib/crash")

	cfg, err := Load(quiet())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.PurgeThreshold != 12*time.Hour || cfg.DuplicateDistanceKm != 0.5 || cfg.DuplicateWindow != 30*time.Minute {
		t.Fatalf("tunables not applied: %+v", cfg)
	}
	if cfg.MaxRecentPrompts != 5 || cfg.ReportCutoff.Hour != 18 || cfg.ReportCutoff.Minute != 30 {
		t.Fatalf("unexpected prompts/cutoff %d %v", cfg.MaxRecentPrompts, cfg.ReportCutoff)
	}
	if cfg.BoundingBox.Top != 40.8 {
		t.Fatalf("bounding box not applied: %+v", cfg.BoundingBox)
	}
	r28 := cfg.Roadways[0]
	if len(r28.Rules.NumberExclusions) != 2 || r28.Rules.NumberExclusions[1] != "728" {
		t.Fatalf("exclusions not applied: %v", r28.Rules.NumberExclusions)
	}
	if len(r28.Rules.Patterns) != 1 {
		t.Fatalf("patterns should keep defaults: %v", r28.Rules.Patterns)
	}
	if r28.Hashtags != "#Route28" || r28.Files.Seen != filepath.Join("/var/lib/crash", "r28_seen.json") {
		t.Fatalf("roadway overrides not applied: %+v", r28)
	}
	if cfg.Roadways[1].Hashtags != "#Pittsburgh #Traffic #PennDOT" {
		t.Fatalf("other roadway should be untouched: %q", cfg.Roadways[1].Hashtags)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	setCredentials(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("purge_threshold_hours: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
	cfg, err := Load(quiet())
	if err != nil {
		t.Fatalf("non-strict load should fall back to defaults: %v", err)
	}
	if cfg.PurgeThreshold != 24*time.Hour {
		t.Fatalf("expected default purge threshold, got %v", cfg.PurgeThreshold)
	}

	t.Setenv("STRICT_CONFIG", "true")
	if _, err := Load(quiet()); err == nil {
		t.Fatal("expected strict load to fail")
	}
}

func TestAuditDisabledAndInterval(t *testing.T) {
	setCredentials(t)
	t.Setenv("AUDIT_DB_PATH", "off")
	t.Setenv("RUN_INTERVAL", "5m")
	t.Setenv("LOG_FILE", "")
	t.Setenv("HTTP_ADDR", ":8090")
	cfg, err := Load(quiet())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AuditDBPath != "" || cfg.RunInterval != 5*time.Minute || cfg.LogFile != "" {
		t.Fatalf("unexpected %q %v %q", cfg.AuditDBPath, cfg.RunInterval, cfg.LogFile)
	}
	if cfg.HTTPAddr != ":8090" {
		t.Fatalf("unexpected http addr %q", cfg.HTTPAddr)
	}
}
