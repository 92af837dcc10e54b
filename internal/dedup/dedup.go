// Package dedup decides whether a new incident re-reports one already posted.
package dedup

import (
	"log/slog"
	"time"

	"crash_watcher/internal/geo"
	"crash_watcher/internal/model"
)

const (
	DefaultWindow   = 45 * time.Minute
	DefaultRadiusKm = 1.0
)

// Detector applies the time-window and radius rule. Both bounds are symmetric.
type Detector struct {
	Window   time.Duration
	RadiusKm float64
	Logger   *slog.Logger
}

func New(window time.Duration, radiusKm float64, logger *slog.Logger) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{Window: window, RadiusKm: radiusKm, Logger: logger}
}

// IsDuplicate reports whether inc lies within Window (inclusive) and strictly inside
// RadiusKm of any entry in hist. The first matching entry wins.
// An incident without a timestamp is never a duplicate.
func (d *Detector) IsDuplicate(inc model.Incident, hist []model.SeenEntry) bool {
	if !inc.HasTimestamp() {
		d.Logger.Warn("incident has no publish time; skipping duplicate check", "alert_id", inc.ID)
		return false
	}
	for _, entry := range hist {
		if err := entry.Validate(); err != nil {
			d.Logger.Warn("skipping malformed history entry", "alert_id", entry.ID, "err", err)
			continue
		}
		published, err := entry.PublishedAt()
		if err != nil {
			d.Logger.Warn("skipping history entry with bad timestamp", "alert_id", entry.ID, "err", err)
			continue
		}
		delta := inc.PublishedAt.Sub(published)
		if delta < 0 {
			delta = -delta
		}
		if delta > d.Window {
			continue
		}
		dist, err := geo.DistanceKm(inc.Location(), entry.Location())
		if err != nil {
			d.Logger.Warn("distance check failed", "alert_id", inc.ID, "history_id", entry.ID, "err", err)
			continue
		}
		if dist < d.RadiusKm {
			d.Logger.Info("duplicate incident",
				"alert_id", inc.ID,
				"history_id", entry.ID,
				"minutes", delta.Minutes(),
				"km", dist,
			)
			return true
		}
	}
	return false
}
