package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Incident("ROUTE28", OutcomePosted)
	m.Incident("ROUTE28", OutcomePosted)
	m.Incident("PARKWAYEAST", OutcomeDuplicate)
	m.Post("ROUTE28", "incident", "posted")
	m.FeedAlerts(7)
	m.MonthlyCount("ROUTE28", 3)

	if got := testutil.ToFloat64(m.incidents.WithLabelValues("ROUTE28", OutcomePosted)); got != 2 {
		t.Fatalf("expected 2 posted incidents, got %v", got)
	}
	if got := testutil.ToFloat64(m.feedAlerts); got != 7 {
		t.Fatalf("expected feed gauge 7, got %v", got)
	}
	if got := testutil.ToFloat64(m.monthlyCount.WithLabelValues("ROUTE28")); got != 3 {
		t.Fatalf("expected monthly gauge 3, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Incident("ROUTE28", OutcomePosted)
	start := time.Unix(1714564800, 0)
	m.RunFinished(start, start.Add(2*time.Second))

	path := filepath.Join(t.TempDir(), "crashwatch.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`crashwatch_incidents_total{outcome="posted",roadway="ROUTE28"} 1`,
		"crashwatch_last_run_timestamp_seconds 1.714564802e+09",
	} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("textfile missing %q:\n%s", want, data)
		}
	}
}
