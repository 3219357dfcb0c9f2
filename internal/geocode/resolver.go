package geocode

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/desksync/backend/internal/models"
)

const (
	SourceLocal = "database"

	// countrySuffix is appended to raw addresses before external lookup.
	countrySuffix = ", Philippines"
)

// Resolver turns a free-text address into coordinates: a two-stage fuzzy
// match against the local gazetteer first, then external geocoders in
// priority order.
type Resolver struct {
	Gazetteer *Gazetteer
	Chain     []Geocoder
	// Threshold is the minimum local-match score that short-circuits the
	// external chain. The calibration of the default 0.1 is inherited, not
	// derived; it is configurable for that reason.
	Threshold float64
	Logger    zerolog.Logger
}

type scored struct {
	entry models.GazetteerEntry
	score float64
}

// Geocode resolves one address, or returns nil when neither the gazetteer
// nor any external geocoder produces a hit. Errors along the way are
// annotated on the result rather than propagated; a bad address never aborts
// a batch.
func (r *Resolver) Geocode(ctx context.Context, address string) *models.GeocodeMatch {
	if address == "" {
		return nil
	}

	if match := r.localMatch(ctx, address); match != nil {
		return match
	}
	return r.fallback(ctx, address)
}

// localMatch buckets by municipality/province first, then scores every
// barangay-level entry belonging to a matched bucket.
func (r *Resolver) localMatch(ctx context.Context, address string) *models.GeocodeMatch {
	entries, munprov, err := r.Gazetteer.snapshot(ctx)
	if err != nil {
		r.Logger.Error().Err(err).Msg("gazetteer load failed")
		return nil
	}

	cleaned := CleanAddress(address)
	n := NGramSize(cleaned)

	municities := make(map[string]struct{})
	provdists := make(map[string]struct{})
	for _, e := range munprov {
		if JaccardNGram(cleaned, e.Cleaned, n) == 0 {
			continue
		}
		switch e.GeoLevel {
		case levelMunicity:
			municities[e.MunicityCode] = struct{}{}
		case levelProvdist:
			provdists[e.ProvdistCode] = struct{}{}
		}
	}
	if len(municities) == 0 && len(provdists) == 0 {
		return nil
	}

	var candidates []scored
	for _, e := range entries {
		_, inMun := municities[e.MunicityCode]
		_, inProv := provdists[e.ProvdistCode]
		if !inMun && !inProv {
			continue
		}
		if score := JaccardNGram(cleaned, e.Cleaned, n); score > 0 {
			candidates = append(candidates, scored{entry: e, score: score})
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	top := candidates[0]
	if top.score < r.Threshold {
		return nil
	}
	return &models.GeocodeMatch{
		InputAddress: address,
		Address:      top.entry.Address,
		Latitude:     top.entry.Latitude,
		Longitude:    top.entry.Longitude,
		Score:        top.score,
		Source:       SourceLocal,
	}
}

func (r *Resolver) fallback(ctx context.Context, address string) *models.GeocodeMatch {
	query := address + countrySuffix
	for _, g := range r.Chain {
		lat, lon, err := g.Geocode(ctx, query)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				r.Logger.Warn().Err(err).Str("source", g.Name()).Str("address", address).Msg("external geocode failed")
			}
			continue
		}
		return &models.GeocodeMatch{
			InputAddress: address,
			Address:      query,
			Latitude:     lat,
			Longitude:    lon,
			Source:       g.Name(),
		}
	}
	return nil
}
