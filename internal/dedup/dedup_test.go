package dedup

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"crash_watcher/internal/model"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func incident(id string, at time.Time, lat, lon float64) model.Incident {
	return model.Incident{
		ID:          id,
		Kind:        model.KindAccident,
		Latitude:    lat,
		Longitude:   lon,
		Published:   at.Format(time.RFC3339Nano),
		PublishedAt: at,
	}
}

func TestIsDuplicate(t *testing.T) {
	d := New(0, 0, quiet())
	prior := model.NewSeenEntry(incident("a", base, 40.5000, -79.9000))

	cases := []struct {
		name string
		inc  model.Incident
		want bool
	}{
		{name: "close in time and space", inc: incident("b", base.Add(10*time.Minute), 40.5027, -79.9000), want: true},
		{name: "earlier report", inc: incident("b", base.Add(-30*time.Minute), 40.5010, -79.9000), want: true},
		{name: "window is inclusive", inc: incident("b", base.Add(45*time.Minute), 40.5000, -79.9000), want: true},
		{name: "outside window", inc: incident("b", base.Add(46*time.Minute), 40.5000, -79.9000), want: false},
		{name: "too far", inc: incident("b", base.Add(5*time.Minute), 40.5200, -79.9000), want: false},
		{name: "no timestamp", inc: model.Incident{ID: "b", Latitude: 40.5, Longitude: -79.9}, want: false},
		{name: "invalid coordinates", inc: incident("b", base, math.NaN(), -79.9000), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := d.IsDuplicate(tc.inc, []model.SeenEntry{prior}); got != tc.want {
				t.Fatalf("IsDuplicate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsDuplicateSymmetric(t *testing.T) {
	d := New(0, 0, quiet())
	a := incident("a", base, 40.5000, -79.9000)
	b := incident("b", base.Add(20*time.Minute), 40.5040, -79.9030)
	ab := d.IsDuplicate(b, []model.SeenEntry{model.NewSeenEntry(a)})
	ba := d.IsDuplicate(a, []model.SeenEntry{model.NewSeenEntry(b)})
	if !ab || ab != ba {
		t.Fatalf("expected symmetric duplicate, got %v and %v", ab, ba)
	}
}

func TestIsDuplicateSkipsMalformedEntries(t *testing.T) {
	d := New(0, 0, quiet())
	lat := 40.5
	hist := []model.SeenEntry{
		{ID: "broken", Published: base.Format(time.RFC3339), Lat: &lat},
		{ID: "badtime", Published: "yesterday", Lat: &lat, Lon: &lat},
		model.NewSeenEntry(incident("good", base, 40.5, -79.9)),
	}
	if !d.IsDuplicate(incident("new", base.Add(time.Minute), 40.5, -79.9), hist) {
		t.Fatal("expected match against the valid entry")
	}
	if d.IsDuplicate(incident("new", base.Add(time.Minute), 40.5, -79.9), hist[:2]) {
		t.Fatal("malformed entries must never match")
	}
}
