// Package history keeps the per-roadway ledger of incidents that were posted.
package history

import (
	"log/slog"
	"time"

	"crash_watcher/internal/jsonfile"
	"crash_watcher/internal/model"
)

const DefaultThreshold = 24 * time.Hour

// Purge returns the entries no older than threshold relative to now.
// Entries that fail validation or carry an unparseable timestamp are dropped with a warning.
// Purge(Purge(h, t), t) equals Purge(h, t).
func Purge(entries []model.SeenEntry, now time.Time, threshold time.Duration, logger *slog.Logger) []model.SeenEntry {
	out := make([]model.SeenEntry, 0, len(entries))
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			logger.Warn("dropping malformed history entry", "alert_id", e.ID, "err", err)
			continue
		}
		published, err := e.PublishedAt()
		if err != nil {
			logger.Warn("dropping history entry with bad timestamp", "alert_id", e.ID, "err", err)
			continue
		}
		if now.Sub(published) > threshold {
			continue
		}
		out = append(out, e)
	}
	if removed := len(entries) - len(out); removed > 0 {
		logger.Debug("purged history", "removed", removed, "kept", len(out))
	}
	return out
}

// Append adds entry to a copy of entries.
func Append(entries []model.SeenEntry, entry model.SeenEntry) []model.SeenEntry {
	out := make([]model.SeenEntry, 0, len(entries)+1)
	out = append(out, entries...)
	return append(out, entry)
}

// Changed reports whether a and b differ as sets of entries. Order is ignored.
func Changed(a, b []model.SeenEntry) bool {
	return !sameSet(a, b)
}

func sameSet(a, b []model.SeenEntry) bool {
	left := make(map[model.EntryKey]struct{}, len(a))
	for _, e := range a {
		left[e.Key()] = struct{}{}
	}
	right := make(map[model.EntryKey]struct{}, len(b))
	for _, e := range b {
		right[e.Key()] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for k := range left {
		if _, ok := right[k]; !ok {
			return false
		}
	}
	return true
}

// Load reads the ledger at path. Any failure yields an empty ledger.
func Load(logger *slog.Logger, path string) []model.SeenEntry {
	entries, _ := jsonfile.Load[[]model.SeenEntry](logger, path, nil)
	if entries == nil {
		entries = []model.SeenEntry{}
	}
	return entries
}

// Save writes the ledger. The caller logs failures; the previous file is left intact.
func Save(path string, entries []model.SeenEntry) error {
	if entries == nil {
		entries = []model.SeenEntry{}
	}
	return jsonfile.Save(path, entries)
}
