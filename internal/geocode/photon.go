package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PhotonGeocoder is the secondary external geocoder, tried only when the
// primary returns nothing.
type PhotonGeocoder struct {
	BaseURL string
	Client  *http.Client
}

func (g *PhotonGeocoder) Name() string {
	return "photon"
}

func (g *PhotonGeocoder) Geocode(ctx context.Context, query string) (float64, float64, error) {
	if g.Client == nil {
		g.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if g.BaseURL == "" {
		g.BaseURL = "https://photon.komoot.io"
	}

	endpoint := fmt.Sprintf("%s/api/?q=%s&limit=1", g.BaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, err
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, 0, fmt.Errorf("photon http error: %s", resp.Status)
	}

	var body struct {
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, err
	}
	if len(body.Features) == 0 || len(body.Features[0].Geometry.Coordinates) < 2 {
		return 0, 0, ErrNotFound
	}
	// GeoJSON order is lon, lat
	coords := body.Features[0].Geometry.Coordinates
	return coords[1], coords[0], nil
}
