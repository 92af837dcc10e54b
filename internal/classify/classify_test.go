package classify

import (
	"testing"

	"crash_watcher/internal/roadway"
)

func newDefault(t *testing.T) *Classifier {
	t.Helper()
	c, err := New(roadway.Defaults())
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	return c
}

func TestClassifyDefaults(t *testing.T) {
	c := newDefault(t)
	cases := []struct {
		name  string
		label string
		want  roadway.Key
	}{
		{name: "empty", label: "", want: roadway.None},
		{name: "whitespace", label: "   ", want: roadway.None},
		{name: "designator with suffix", label: "PA-28 N", want: roadway.Route28},
		{name: "route word", label: "Route 28", want: roadway.Route28},
		{name: "lowercase designator", label: "rt28", want: roadway.Route28},
		{name: "bare number", label: "SR-28 S", want: roadway.Route28},
		{name: "hundred collision", label: "PA-228", want: roadway.None},
		{name: "decade collision", label: "128 Main St", want: roadway.None},
		{name: "trailing digit collision", label: "Route 286", want: roadway.None},
		{name: "business route", label: "PA-28 BUS", want: roadway.None},
		{name: "parkway name", label: "Parkway East", want: roadway.ParkwayEast},
		{name: "interstate", label: "I-376", want: roadway.ParkwayEast},
		{name: "tunnel", label: "Fort Pitt Tunnel", want: roadway.ParkwayEast},
		{name: "bridge regex", label: "Veterans Bridge", want: roadway.ParkwayEast},
		{name: "interstate business", label: "I-376 BUS", want: roadway.None},
		{name: "overlap resolves to first", label: "376 Route 28 Connector", want: roadway.Route28},
		{name: "unrelated", label: "Liberty Ave", want: roadway.None},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.Classify(tc.label); got != tc.want {
				t.Fatalf("Classify(%q) = %s, want %s", tc.label, got, tc.want)
			}
		})
	}
}

func TestClassifyPriorityFollowsOrder(t *testing.T) {
	roads := roadway.Defaults()
	roads[0], roads[1] = roads[1], roads[0]
	c, err := New(roads)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	if got := c.Classify("376 Route 28 Connector"); got != roadway.ParkwayEast {
		t.Fatalf("expected PARKWAYEAST when it is evaluated first, got %s", got)
	}
}

func TestConfigurableExclusions(t *testing.T) {
	roads := roadway.Defaults()
	roads[0].Rules.NumberExclusions = append(roads[0].Rules.NumberExclusions, "728")
	c, err := New(roads)
	if err != nil {
		t.Fatalf("new classifier: %v", err)
	}
	if got := c.Classify("SR 728"); got != roadway.None {
		t.Fatalf("expected NONE for added exclusion, got %s", got)
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	roads := roadway.Defaults()
	roads[1].Rules.Patterns = []string{"(unclosed"}
	if _, err := New(roads); err == nil {
		t.Fatal("expected compile error")
	}
}
