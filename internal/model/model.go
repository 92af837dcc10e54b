// Package model holds the feed incident and persisted ledger records shared by the core packages.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// KindAccident is the only incident kind the watcher posts about.
const KindAccident = "ACCIDENT"

var (
	ErrMissingTimestamp = errors.New("missing publish timestamp")
	ErrMissingField     = errors.New("missing required field")
)

// Incident is one alert from the traffic feed. It only lives for the duration of a run.
type Incident struct {
	ID          string
	Kind        string
	Latitude    float64
	Longitude   float64
	Street      string
	Published   string
	PublishedAt time.Time
}

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

func (i Incident) Location() Coordinate {
	return Coordinate{Lat: i.Latitude, Lon: i.Longitude}
}

// HasTimestamp reports whether the feed supplied a parseable publish time.
func (i Incident) HasTimestamp() bool {
	return !i.PublishedAt.IsZero()
}

// BoundingBox is the region queried from the feed.
type BoundingBox struct {
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Top    float64 `json:"top" yaml:"top"`
	Left   float64 `json:"left" yaml:"left"`
	Right  float64 `json:"right" yaml:"right"`
}

func (b BoundingBox) Valid() bool {
	return b.Bottom < b.Top && b.Left < b.Right
}

// SeenEntry is a persisted summary of an incident that was posted.
// Field names match the on-disk ledger written by earlier deployments.
type SeenEntry struct {
	ID        string   `json:"alert_id"`
	Published string   `json:"publish_datetime_utc"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

// NewSeenEntry builds a ledger entry from an accepted incident.
func NewSeenEntry(inc Incident) SeenEntry {
	lat, lon := inc.Latitude, inc.Longitude
	return SeenEntry{ID: inc.ID, Published: inc.Published, Lat: &lat, Lon: &lon}
}

// Validate returns ErrMissingField when any of id, timestamp or coordinates is absent.
func (e SeenEntry) Validate() error {
	switch {
	case strings.TrimSpace(e.ID) == "":
		return fmt.Errorf("alert_id: %w", ErrMissingField)
	case strings.TrimSpace(e.Published) == "":
		return fmt.Errorf("publish_datetime_utc: %w", ErrMissingField)
	case e.Lat == nil:
		return fmt.Errorf("lat: %w", ErrMissingField)
	case e.Lon == nil:
		return fmt.Errorf("lon: %w", ErrMissingField)
	}
	return nil
}

// PublishedAt parses the stored publish timestamp.
func (e SeenEntry) PublishedAt() (time.Time, error) {
	return ParseTimestamp(e.Published)
}

func (e SeenEntry) Location() Coordinate {
	var c Coordinate
	if e.Lat != nil {
		c.Lat = *e.Lat
	}
	if e.Lon != nil {
		c.Lon = *e.Lon
	}
	return c
}

// EntryKey is the comparable field-set of a SeenEntry used for set equality.
type EntryKey struct {
	ID        string
	Published string
	Lat       float64
	Lon       float64
	HasLat    bool
	HasLon    bool
}

func (e SeenEntry) Key() EntryKey {
	k := EntryKey{ID: e.ID, Published: e.Published}
	if e.Lat != nil {
		k.Lat, k.HasLat = *e.Lat, true
	}
	if e.Lon != nil {
		k.Lon, k.HasLon = *e.Lon, true
	}
	return k
}

// ParseTimestamp accepts the feed's ISO-8601 UTC format ("2024-05-01T12:00:00.000Z").
// Fractional seconds are optional.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
