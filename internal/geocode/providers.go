package geocode

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"crash_watcher/internal/model"
)

const (
	nominatimURL = "https://nominatim.openstreetmap.org/reverse"
	openCageURL  = "https://api.opencagedata.com/geocode/v1/json"
	mapboxURL    = "https://api.mapbox.com/geocoding/v5/mapbox.places/"
	userAgent    = "pittsburgh-crash-watcher"
)

func coordString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Nominatim queries the OpenStreetMap reverse endpoint.
type Nominatim struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
}

func NewNominatim(baseURL string) *Nominatim {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = nominatimURL
	}
	return &Nominatim{BaseURL: baseURL, UserAgent: userAgent, HTTP: newHTTPClient()}
}

func (n *Nominatim) Name() string { return "nominatim" }

func (n *Nominatim) Locality(ctx context.Context, c model.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", coordString(c.Lat))
	q.Set("lon", coordString(c.Lon))
	q.Set("addressdetails", "1")
	var data struct {
		Address map[string]string `json:"address"`
	}
	headers := map[string]string{"User-Agent": n.UserAgent}
	if err := getJSON(ctx, n.HTTP, n.BaseURL+"?"+q.Encode(), headers, &data); err != nil {
		return "", err
	}
	return pickLocality(data.Address)
}

// OpenCage is used only when an API key is configured.
type OpenCage struct {
	BaseURL string
	Key     string
	HTTP    *http.Client
}

func NewOpenCage(baseURL, key string) *OpenCage {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = openCageURL
	}
	return &OpenCage{BaseURL: baseURL, Key: key, HTTP: newHTTPClient()}
}

func (o *OpenCage) Name() string { return "opencage" }

func (o *OpenCage) Locality(ctx context.Context, c model.Coordinate) (string, error) {
	q := url.Values{}
	q.Set("q", coordString(c.Lat)+","+coordString(c.Lon))
	q.Set("key", o.Key)
	q.Set("no_annotations", "1")
	q.Set("limit", "1")
	var data struct {
		Results []struct {
			Components map[string]any `json:"components"`
		} `json:"results"`
	}
	if err := getJSON(ctx, o.HTTP, o.BaseURL+"?"+q.Encode(), nil, &data); err != nil {
		return "", err
	}
	if len(data.Results) == 0 {
		return "", ErrNoLocality
	}
	// components mixes strings with nested objects.
	fields := make(map[string]string, len(data.Results[0].Components))
	for k, v := range data.Results[0].Components {
		if s, ok := v.(string); ok {
			fields[k] = s
		}
	}
	return pickLocality(fields)
}

// Mapbox resolves the place feature for a coordinate.
type Mapbox struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewMapbox(baseURL, token string) *Mapbox {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = mapboxURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Mapbox{BaseURL: baseURL, Token: token, HTTP: newHTTPClient()}
}

func (m *Mapbox) Name() string { return "mapbox" }

func (m *Mapbox) Locality(ctx context.Context, c model.Coordinate) (string, error) {
	endpoint := fmt.Sprintf("%s%s,%s.json?access_token=%s&types=place,locality&limit=1&language=en",
		m.BaseURL, coordString(c.Lon), coordString(c.Lat), url.QueryEscape(m.Token))
	var data struct {
		Features []struct {
			Text string `json:"text"`
		} `json:"features"`
	}
	if err := getJSON(ctx, m.HTTP, endpoint, nil, &data); err != nil {
		return "", err
	}
	if len(data.Features) == 0 {
		return "", ErrNoLocality
	}
	return pickLocality(map[string]string{"city": data.Features[0].Text})
}
