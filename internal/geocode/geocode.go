// Package geocode turns a coordinate into a locality name using a chain of reverse
// geocoding providers. The chain never fails: it falls back to Unknown.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"crash_watcher/internal/model"
	"crash_watcher/internal/retry"
)

// Unknown is returned when no provider yields a locality.
const Unknown = "unknown"

const requestTimeout = 10 * time.Second

var ErrNoLocality = errors.New("no locality in response")

// localityKeys are checked in order; the first non-empty one wins.
var localityKeys = []string{"municipality", "city", "town", "village"}

// Provider resolves one coordinate to a locality name.
type Provider interface {
	Name() string
	Locality(ctx context.Context, c model.Coordinate) (string, error)
}

// Chain tries each provider in order.
type Chain struct {
	Providers []Provider
	Policy    retry.Policy
	Logger    *slog.Logger
}

func NewChain(logger *slog.Logger, policy retry.Policy, providers ...Provider) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{Providers: providers, Policy: policy, Logger: logger}
}

// City returns the first locality any provider reports, or Unknown.
func (c *Chain) City(ctx context.Context, coord model.Coordinate) string {
	for _, p := range c.Providers {
		name := p.Name()
		city, err := retry.Do(ctx, c.Policy, c.Logger.With("provider", name), "reverse geocode", func(ctx context.Context) (string, error) {
			city, err := p.Locality(ctx, coord)
			if errors.Is(err, ErrNoLocality) {
				return "", retry.Permanent(err)
			}
			return city, err
		})
		if err == nil && city != "" {
			c.Logger.Debug("resolved locality", "provider", name, "city", city)
			return city
		}
		c.Logger.Warn("geocoder failed, trying next", "provider", name, "lat", coord.Lat, "lon", coord.Lon, "err", err)
	}
	c.Logger.Warn("could not determine city", "lat", coord.Lat, "lon", coord.Lon)
	return Unknown
}

func pickLocality(fields map[string]string) (string, error) {
	for _, key := range localityKeys {
		if v := strings.TrimSpace(fields[key]); v != "" {
			return v, nil
		}
	}
	return "", ErrNoLocality
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		err := fmt.Errorf("status %d", resp.StatusCode)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return retry.Permanent(err)
		}
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
