package feed

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"crash_watcher/internal/model"
	"crash_watcher/internal/retry"
)

var box = model.BoundingBox{Bottom: 40.4, Top: 40.75, Left: -80.3, Right: -79.55}

func newClient(url string, retries int) *Client {
	return New(url, "secret", retry.Policy{Retries: retries, Initial: time.Millisecond, Max: 2 * time.Millisecond},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const payload = `{"status":"OK","data":{"alerts":[
 {"alert_id":"a1","type":"ACCIDENT","latitude":40.5,"longitude":-79.9,"street":"PA-28 N","publish_datetime_utc":"2024-05-01T12:00:00.000Z"},
 {"alert_id":"a2","type":"ACCIDENT","latitude":40.45,"longitude":-79.95,"street":null,"publish_datetime_utc":"bad"}
],"jams":[]}}`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alerts-and-jams" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("bottom_left") != "40.4,-80.3" || q.Get("top_right") != "40.75,-79.55" || q.Get("alert_types") != "ACCIDENT" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-rapidapi-key") != "secret" || r.Header.Get("x-rapidapi-host") != rapidAPIHost {
			t.Errorf("missing rapidapi headers")
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	got := newClient(srv.URL, 0).Fetch(context.Background(), box)
	if len(got) != 2 {
		t.Fatalf("expected 2 incidents, got %d", len(got))
	}
	first := got[0]
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if first.ID != "a1" || first.Kind != model.KindAccident || first.Street != "PA-28 N" || !first.PublishedAt.Equal(want) {
		t.Fatalf("unexpected first incident %+v", first)
	}
	if got[1].HasTimestamp() || got[1].Street != "" {
		t.Fatalf("expected unparsed timestamp and empty street, got %+v", got[1])
	}
}

func TestFetchRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	if got := newClient(srv.URL, 4).Fetch(context.Background(), box); len(got) != 2 {
		t.Fatalf("expected incidents after retry, got %d", len(got))
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestFetchEmptyOnExhaustion(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	got := newClient(srv.URL, 4).Fetch(context.Background(), box)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
	if calls.Load() != 5 {
		t.Fatalf("expected 1 + 4 attempts, got %d", calls.Load())
	}
}
