// Package config builds the watcher's configuration object from the environment,
// an optional .env file and an optional YAML/JSON override file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"crash_watcher/internal/model"
	"crash_watcher/internal/monthly"
	"crash_watcher/internal/roadway"
)

var ErrMissingCredentials = errors.New("missing required credentials")

// Config is built once at startup and passed explicitly to every component.
type Config struct {
	RapidAPIKey    string
	OpenCageAPIKey string
	MapboxToken    string

	ConfigPath      string
	StateDir        string
	AuditDBPath     string
	MetricsTextfile string
	HTTPAddr        string
	LogLevel        string
	LogFile         string
	Timezone        string
	Location        *time.Location
	RunInterval     time.Duration
	StrictConfig    bool

	BlueskyPDSURL string
	WazeBaseURL   string
	NominatimURL  string
	OpenCageURL   string
	MapboxURL     string

	PurgeThreshold      time.Duration
	DuplicateDistanceKm float64
	DuplicateWindow     time.Duration
	MaxRecentPrompts    int
	MaxFeedRetries      int
	MaxPostRetries      int
	MaxGeocodeRetries   int
	ReportCutoff        monthly.Cutoff
	BoundingBox         model.BoundingBox

	// Roadways are in classification priority order.
	Roadways []roadway.Roadway
}

type fileConfig struct {
	PurgeThresholdHours  *float64           `json:"purge_threshold_hours" yaml:"purge_threshold_hours"`
	DuplicateDistanceKm  *float64           `json:"duplicate_distance_km" yaml:"duplicate_distance_km"`
	DuplicateTimeMinutes *float64           `json:"duplicate_time_minutes" yaml:"duplicate_time_minutes"`
	MaxRecentPrompts     *int               `json:"max_recent_prompts" yaml:"max_recent_prompts"`
	MaxFeedRetries       *int               `json:"max_feed_retries" yaml:"max_feed_retries"`
	MaxPostRetries       *int               `json:"max_post_retries" yaml:"max_post_retries"`
	MaxGeocodeRetries    *int               `json:"max_geocode_retries" yaml:"max_geocode_retries"`
	ReportCutoff         string             `json:"report_cutoff" yaml:"report_cutoff"`
	Timezone             string             `json:"timezone" yaml:"timezone"`
	StateDir             string             `json:"state_dir" yaml:"state_dir"`
	BoundingBox          *model.BoundingBox `json:"bounding_box" yaml:"bounding_box"`
	Roadways             []roadwayFile      `json:"roadways" yaml:"roadways"`
}

type roadwayFile struct {
	Key              string          `json:"key" yaml:"key"`
	Patterns         []string        `json:"patterns" yaml:"patterns"`
	Number           *string         `json:"number" yaml:"number"`
	NumberExclusions []string        `json:"number_exclusions" yaml:"number_exclusions"`
	Aliases          []string        `json:"aliases" yaml:"aliases"`
	Excludes         []string        `json:"excludes" yaml:"excludes"`
	Prompts          []string        `json:"prompts" yaml:"prompts"`
	ReportTemplate   string          `json:"report_template" yaml:"report_template"`
	Hashtags         string          `json:"hashtags" yaml:"hashtags"`
	Emojis           *roadway.Emojis `json:"emojis" yaml:"emojis"`
	SeenFile         string          `json:"seen_file" yaml:"seen_file"`
	PromptsFile      string          `json:"prompts_file" yaml:"prompts_file"`
	MonthlyFile      string          `json:"monthly_file" yaml:"monthly_file"`
}

const (
	defaultConfigFile   = "config.yaml"
	defaultAuditDB      = "crash_watcher.db"
	defaultLogFile      = "combined_crash_watcher.log"
	defaultTimezone     = "America/New_York"
	defaultPurgeHours   = 24
	defaultDistanceKm   = 1
	defaultWindowMin    = 45
	defaultMaxPrompts   = 12
	defaultFeedRetries  = 4
	defaultPostRetries  = 3
	defaultGeoRetries   = 1
	auditDisabledMarker = "off"
)

// DefaultBoundingBox covers Route 28 and the Parkways around Pittsburgh.
var DefaultBoundingBox = model.BoundingBox{Bottom: 40.400, Top: 40.750, Left: -80.300, Right: -79.550}

// Load reads .env (never overriding variables already set), then the environment, then
// the override file at CONFIG_PATH. Missing API or Bluesky credentials return
// ErrMissingCredentials. File problems are logged and ignored unless STRICT_CONFIG is set.
func Load(logger *slog.Logger) (Config, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not read .env", "err", err)
	}

	cfg := Config{
		RapidAPIKey:     strings.TrimSpace(os.Getenv("RAPIDAPI_KEY")),
		OpenCageAPIKey:  strings.TrimSpace(os.Getenv("OPENCAGE_API_KEY")),
		MapboxToken:     strings.TrimSpace(os.Getenv("MAPBOX_TOKEN")),
		ConfigPath:      getEnv("CONFIG_PATH", filepath.Join("config", defaultConfigFile)),
		MetricsTextfile: strings.TrimSpace(os.Getenv("METRICS_TEXTFILE")),
		HTTPAddr:        strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StrictConfig:    parseBoolEnv("STRICT_CONFIG"),
		BlueskyPDSURL:   strings.TrimRight(getEnv("BLUESKY_PDS_URL", "https://bsky.social"), "/"),
		WazeBaseURL:     strings.TrimSpace(os.Getenv("WAZE_BASE_URL")),
		NominatimURL:    strings.TrimSpace(os.Getenv("NOMINATIM_URL")),
		OpenCageURL:     strings.TrimSpace(os.Getenv("OPENCAGE_URL")),
		MapboxURL:       strings.TrimSpace(os.Getenv("MAPBOX_GEOCODER_URL")),

		PurgeThreshold:      defaultPurgeHours * time.Hour,
		DuplicateDistanceKm: defaultDistanceKm,
		DuplicateWindow:     defaultWindowMin * time.Minute,
		MaxRecentPrompts:    defaultMaxPrompts,
		MaxFeedRetries:      defaultFeedRetries,
		MaxPostRetries:      defaultPostRetries,
		MaxGeocodeRetries:   defaultGeoRetries,
		ReportCutoff:        monthly.DefaultCutoff,
		BoundingBox:         DefaultBoundingBox,
		Roadways:            roadway.Defaults(),
	}
	if v, ok := os.LookupEnv("LOG_FILE"); ok {
		cfg.LogFile = strings.TrimSpace(v)
	} else {
		cfg.LogFile = defaultLogFile
	}

	fileCfg, fileErr := loadFileConfig(cfg.ConfigPath)
	switch {
	case fileErr == nil:
	case errors.Is(fileErr, os.ErrNotExist):
		logger.Debug("no override file", "path", cfg.ConfigPath)
	case cfg.StrictConfig:
		return cfg, fmt.Errorf("config load failed (%s): %w", cfg.ConfigPath, fileErr)
	default:
		logger.Warn("config load failed, using defaults", "path", cfg.ConfigPath, "err", fileErr)
		fileCfg = fileConfig{}
	}

	if err := applyFileOverrides(&cfg, fileCfg); err != nil {
		if cfg.StrictConfig {
			return cfg, err
		}
		logger.Warn("ignoring invalid override", "err", err)
	}

	cfg.StateDir = firstNonEmpty(os.Getenv("STATE_DIR"), fileCfg.StateDir, ".")
	cfg.Timezone = firstNonEmpty(os.Getenv("TIMEZONE"), fileCfg.Timezone, defaultTimezone)
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		if cfg.StrictConfig {
			return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
		}
		logger.Warn("invalid timezone, using UTC", "timezone", cfg.Timezone, "err", err)
		loc = time.UTC
	}
	cfg.Location = loc

	switch v := strings.TrimSpace(os.Getenv("AUDIT_DB_PATH")); {
	case strings.EqualFold(v, auditDisabledMarker):
		cfg.AuditDBPath = ""
	case v != "":
		cfg.AuditDBPath = v
	default:
		cfg.AuditDBPath = filepath.Join(cfg.StateDir, defaultAuditDB)
	}

	if v := strings.TrimSpace(os.Getenv("RUN_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			if cfg.StrictConfig {
				return cfg, fmt.Errorf("invalid RUN_INTERVAL %q", v)
			}
			logger.Warn("invalid RUN_INTERVAL, running once", "value", v)
			d = 0
		}
		cfg.RunInterval = d
	}

	for i := range cfg.Roadways {
		rw := &cfg.Roadways[i]
		suffix := rw.Key.String()
		rw.Credentials = roadway.Credentials{
			Handle:      strings.TrimSpace(os.Getenv("BLUESKY_HANDLE_" + suffix)),
			AppPassword: strings.TrimSpace(os.Getenv("BLUESKY_APP_PASSWORD_" + suffix)),
		}
		rw.ReportImagePath = strings.TrimSpace(os.Getenv("MONTHLY_STATS_GIF_" + suffix))
		rw.Files = roadway.Files{
			Seen:    statePath(cfg.StateDir, rw.Files.Seen),
			Prompts: statePath(cfg.StateDir, rw.Files.Prompts),
			Monthly: statePath(cfg.StateDir, rw.Files.Monthly),
		}
	}

	if cfg.OpenCageAPIKey == "" {
		logger.Warn("OPENCAGE_API_KEY not set, OpenCage fallback disabled")
	}

	return cfg, validateConfig(cfg)
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if len(data) == 0 {
		return cfg, errors.New("empty config file")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return fileConfig{}, err
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fileConfig{}, err
		}
	}
	return cfg, nil
}

func applyFileOverrides(cfg *Config, f fileConfig) error {
	var errs []error
	if f.PurgeThresholdHours != nil && *f.PurgeThresholdHours > 0 {
		cfg.PurgeThreshold = time.Duration(*f.PurgeThresholdHours * float64(time.Hour))
	}
	if f.DuplicateDistanceKm != nil && *f.DuplicateDistanceKm > 0 {
		cfg.DuplicateDistanceKm = *f.DuplicateDistanceKm
	}
	if f.DuplicateTimeMinutes != nil && *f.DuplicateTimeMinutes > 0 {
		cfg.DuplicateWindow = time.Duration(*f.DuplicateTimeMinutes * float64(time.Minute))
	}
	if f.MaxRecentPrompts != nil && *f.MaxRecentPrompts > 0 {
		cfg.MaxRecentPrompts = *f.MaxRecentPrompts
	}
	if f.MaxFeedRetries != nil && *f.MaxFeedRetries >= 0 {
		cfg.MaxFeedRetries = *f.MaxFeedRetries
	}
	if f.MaxPostRetries != nil && *f.MaxPostRetries >= 0 {
		cfg.MaxPostRetries = *f.MaxPostRetries
	}
	if f.MaxGeocodeRetries != nil && *f.MaxGeocodeRetries >= 0 {
		cfg.MaxGeocodeRetries = *f.MaxGeocodeRetries
	}
	if strings.TrimSpace(f.ReportCutoff) != "" {
		c, err := monthly.ParseCutoff(f.ReportCutoff)
		if err != nil {
			errs = append(errs, err)
		} else {
			cfg.ReportCutoff = c
		}
	}
	if f.BoundingBox != nil {
		if f.BoundingBox.Valid() {
			cfg.BoundingBox = *f.BoundingBox
		} else {
			errs = append(errs, fmt.Errorf("bounding_box %+v is empty or inverted", *f.BoundingBox))
		}
	}
	for _, rf := range f.Roadways {
		key, err := roadway.ParseKey(rf.Key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for i := range cfg.Roadways {
			if cfg.Roadways[i].Key == key {
				applyRoadwayOverrides(&cfg.Roadways[i], rf)
			}
		}
	}
	return errors.Join(errs...)
}

func applyRoadwayOverrides(rw *roadway.Roadway, f roadwayFile) {
	if f.Patterns != nil {
		rw.Rules.Patterns = f.Patterns
	}
	if f.Number != nil {
		rw.Rules.Number = strings.TrimSpace(*f.Number)
	}
	if f.NumberExclusions != nil {
		rw.Rules.NumberExclusions = f.NumberExclusions
	}
	if f.Aliases != nil {
		rw.Rules.Aliases = f.Aliases
	}
	if f.Excludes != nil {
		rw.Rules.Excludes = f.Excludes
	}
	if len(f.Prompts) > 0 {
		rw.Prompts = f.Prompts
	}
	if strings.TrimSpace(f.ReportTemplate) != "" {
		rw.ReportTemplate = f.ReportTemplate
	}
	if strings.TrimSpace(f.Hashtags) != "" {
		rw.Hashtags = strings.TrimSpace(f.Hashtags)
	}
	if f.Emojis != nil {
		rw.Emojis.Intro = firstNonEmpty(f.Emojis.Intro, rw.Emojis.Intro)
		rw.Emojis.Location = firstNonEmpty(f.Emojis.Location, rw.Emojis.Location)
		rw.Emojis.ReportedAt = firstNonEmpty(f.Emojis.ReportedAt, rw.Emojis.ReportedAt)
	}
	rw.Files.Seen = firstNonEmpty(f.SeenFile, rw.Files.Seen)
	rw.Files.Prompts = firstNonEmpty(f.PromptsFile, rw.Files.Prompts)
	rw.Files.Monthly = firstNonEmpty(f.MonthlyFile, rw.Files.Monthly)
}

func validateConfig(cfg Config) error {
	var missing []string
	if cfg.RapidAPIKey == "" {
		missing = append(missing, "RAPIDAPI_KEY")
	}
	for _, rw := range cfg.Roadways {
		if !rw.Credentials.Complete() {
			missing = append(missing, rw.Key.DisplayName()+" Bluesky credentials")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	for _, rw := range cfg.Roadways {
		if len(rw.Prompts) == 0 {
			return fmt.Errorf("roadway %s has no prompts", rw.Key)
		}
	}
	return nil
}

func statePath(dir, name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return val
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBoolEnv(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err == nil {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "yes", "on":
		return true
	}
	return false
}
