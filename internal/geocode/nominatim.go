package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

var ErrNotFound = errors.New("geocode not found")

// Geocoder is one external resolver in the fallback chain.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (lat float64, lon float64, err error)
	Name() string
}

// NominatimGeocoder is the primary external geocoder. Calls are spaced at
// least MinInterval apart across the process, per the service's usage policy.
type NominatimGeocoder struct {
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Client      *http.Client

	mu        sync.Mutex
	lastReqAt time.Time
}

func (g *NominatimGeocoder) Name() string {
	return "osm"
}

func (g *NominatimGeocoder) Geocode(ctx context.Context, query string) (float64, float64, error) {
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if g.UserAgent == "" {
		g.UserAgent = "desksync-geocoder"
	}
	if g.MinInterval <= 0 {
		g.MinInterval = 1250 * time.Millisecond
	}

	g.mu.Lock()
	sleepFor := time.Until(g.lastReqAt.Add(g.MinInterval))
	if sleepFor > 0 {
		g.mu.Unlock()
		select {
		case <-time.After(sleepFor):
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		}
		g.mu.Lock()
	}
	g.lastReqAt = time.Now()
	g.mu.Unlock()

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("User-Agent", g.UserAgent)

	resp, err := g.Client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, 0, fmt.Errorf("nominatim http error: %s", resp.Status)
	}

	var items []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return 0, 0, err
	}
	if len(items) == 0 {
		return 0, 0, ErrNotFound
	}

	lat, err := strconv.ParseFloat(items[0].Lat, 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(items[0].Lon, 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}
