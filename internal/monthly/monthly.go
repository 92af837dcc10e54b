// Package monthly tracks the per-roadway monthly incident count and decides when the
// month-end report is due.
package monthly

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"crash_watcher/internal/jsonfile"
)

const dateLayout = "2006-01-02"

// State is the persisted counter.
type State struct {
	Count     int    `json:"current_month_crashes"`
	LastReset string `json:"last_reset_date"`
}

// rawState detects missing keys so a partial file is treated as malformed.
type rawState struct {
	Count     *int    `json:"current_month_crashes"`
	LastReset *string `json:"last_reset_date"`
}

func (s *State) UnmarshalJSON(data []byte) error {
	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Count == nil || raw.LastReset == nil {
		return fmt.Errorf("monthly state missing current_month_crashes or last_reset_date")
	}
	if _, err := time.Parse(dateLayout, *raw.LastReset); err != nil {
		return fmt.Errorf("monthly state last_reset_date: %w", err)
	}
	s.Count = *raw.Count
	s.LastReset = *raw.LastReset
	return nil
}

// LastResetDate parses LastReset in loc.
func (s State) LastResetDate(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s.LastReset, loc)
}

// Fresh is the state written when no usable file exists.
func Fresh(today time.Time) State {
	return State{Count: 0, LastReset: today.Format(dateLayout)}
}

// Counter owns one roadway's state file.
type Counter struct {
	path   string
	state  State
	logger *slog.Logger
}

// Load reads the counter at path. A missing or malformed file is replaced with a
// fresh state dated today and written back immediately. An unreadable file yields
// the same fresh state in memory only.
func Load(logger *slog.Logger, path string, today time.Time) *Counter {
	fresh := Fresh(today)
	state, status := jsonfile.Load(logger, path, fresh)
	c := &Counter{path: path, state: state, logger: logger}
	switch status {
	case jsonfile.Missing, jsonfile.Corrupt:
		if err := c.Save(); err != nil {
			logger.Error("could not initialize monthly counter", "path", path, "err", err)
		} else {
			logger.Info("initialized monthly counter", "path", path)
		}
	}
	return c
}

func (c *Counter) State() State { return c.state }

func (c *Counter) Count() int { return c.state.Count }

// Increment adds one accepted incident.
func (c *Counter) Increment() {
	c.state.Count++
	c.logger.Info("monthly counter incremented", "path", c.path, "count", c.state.Count)
}

// Reset zeroes the count and stamps today as the last reset.
func (c *Counter) Reset(today time.Time) {
	c.state = Fresh(today)
}

func (c *Counter) Save() error {
	return jsonfile.Save(c.path, c.state)
}

// LastDayOfMonth returns the final calendar day of t's month, keeping t's clock and location.
func LastDayOfMonth(t time.Time) time.Time {
	day28 := time.Date(t.Year(), t.Month(), 28, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	next := day28.AddDate(0, 0, 4)
	return next.AddDate(0, 0, -next.Day())
}

// Cutoff is the local time of day after which the end-of-month report may go out.
type Cutoff struct {
	Hour   int
	Minute int
}

var DefaultCutoff = Cutoff{Hour: 12, Minute: 59}

// ParseCutoff reads "HH:MM".
func ParseCutoff(s string) (Cutoff, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Cutoff{}, fmt.Errorf("cutoff %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return Cutoff{}, fmt.Errorf("cutoff %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return Cutoff{}, fmt.Errorf("cutoff %q: bad minute", s)
	}
	return Cutoff{Hour: h, Minute: m}, nil
}

func (c Cutoff) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Trigger is why a report is due.
type Trigger int

const (
	NotDue Trigger = iota
	// EndOfMonth fires on the last day of the month at or after the cutoff.
	EndOfMonth
	// NewMonth catches up on the 1st when the end-of-month run was missed or failed.
	NewMonth
)

func (t Trigger) String() string {
	switch t {
	case EndOfMonth:
		return "end_of_month"
	case NewMonth:
		return "new_month"
	default:
		return "not_due"
	}
}

// Due evaluates the trigger rule for now against the last reset date. It returns the
// trigger and the instant whose month and year the report covers.
// Months are compared with their year so a stale reset from a year ago still counts.
func Due(now, lastReset time.Time, cutoff Cutoff) (Trigger, time.Time) {
	sameMonth := now.Year() == lastReset.Year() && now.Month() == lastReset.Month()
	if sameMonth {
		return NotDue, time.Time{}
	}
	if now.Day() == LastDayOfMonth(now).Day() {
		at := time.Date(now.Year(), now.Month(), now.Day(), cutoff.Hour, cutoff.Minute, 0, 0, now.Location())
		if !now.Before(at) {
			return EndOfMonth, now
		}
	}
	if now.Day() == 1 {
		return NewMonth, now.AddDate(0, 0, -1)
	}
	return NotDue, time.Time{}
}
