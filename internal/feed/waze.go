// Package feed fetches accident alerts from the Waze RapidAPI endpoint.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crash_watcher/internal/model"
	"crash_watcher/internal/retry"
)

const (
	DefaultBaseURL = "https://waze.p.rapidapi.com"
	rapidAPIHost   = "waze.p.rapidapi.com"
	requestTimeout = 30 * time.Second
)

// Alert is the subset of the Waze alert object the watcher reads.
type Alert struct {
	ID        string  `json:"alert_id"`
	Type      string  `json:"type"`
	Subtype   string  `json:"subtype"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Street    string  `json:"street"`
	City      string  `json:"city"`
	Published string  `json:"publish_datetime_utc"`
}

type response struct {
	Status string `json:"status"`
	Data   struct {
		Alerts []Alert `json:"alerts"`
	} `json:"data"`
}

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	Policy  retry.Policy
	Logger  *slog.Logger
}

func New(baseURL, apiKey string, policy retry.Policy, logger *slog.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: requestTimeout},
		Policy:  policy,
		Logger:  logger,
	}
}

// Fetch returns the accident alerts inside box in feed order. On exhaustion of
// retries it logs and returns an empty slice.
func (c *Client) Fetch(ctx context.Context, box model.BoundingBox) []model.Incident {
	alerts, err := retry.Do(ctx, c.Policy, c.Logger, "waze fetch", func(ctx context.Context) ([]Alert, error) {
		return c.fetchOnce(ctx, box)
	})
	if err != nil {
		return []model.Incident{}
	}
	c.Logger.Info("fetched waze alerts", "count", len(alerts))
	out := make([]model.Incident, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Incident())
	}
	return out
}

func (c *Client) fetchOnce(ctx context.Context, box model.BoundingBox) ([]Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/alerts-and-jams?"+query(box).Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("x-rapidapi-key", c.APIKey)
	req.Header.Set("x-rapidapi-host", rapidAPIHost)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("waze status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	var data response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode waze response: %w", err)
	}
	if data.Data.Alerts == nil {
		return []Alert{}, nil
	}
	return data.Data.Alerts, nil
}

func query(box model.BoundingBox) url.Values {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	q := url.Values{}
	q.Set("bottom_left", f(box.Bottom)+","+f(box.Left))
	q.Set("top_right", f(box.Top)+","+f(box.Right))
	q.Set("alert_types", model.KindAccident)
	return q
}

// Incident converts the wire alert. An unparseable timestamp leaves PublishedAt zero.
func (a Alert) Incident() model.Incident {
	inc := model.Incident{
		ID:        strings.TrimSpace(a.ID),
		Kind:      a.Type,
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
		Street:    a.Street,
		Published: strings.TrimSpace(a.Published),
	}
	if t, err := model.ParseTimestamp(inc.Published); err == nil {
		inc.PublishedAt = t
	}
	return inc
}
