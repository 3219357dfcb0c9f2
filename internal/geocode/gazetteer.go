package geocode

import (
	"context"
	"sync"

	"github.com/desksync/backend/internal/models"
)

// GazetteerSource loads the warehouse-resident address reference table.
type GazetteerSource interface {
	LoadGazetteer(ctx context.Context, table string) ([]models.GazetteerEntry, error)
}

const (
	levelMunicity = "municity"
	levelProvdist = "provdist"
)

// Gazetteer is the lazily-loaded, explicitly-scoped cache of reference
// addresses. First use loads it; Reload refreshes it on demand.
type Gazetteer struct {
	Source GazetteerSource
	Table  string

	mu      sync.Mutex
	loaded  bool
	entries []models.GazetteerEntry
	munprov []models.GazetteerEntry
}

func (g *Gazetteer) load(ctx context.Context) error {
	entries, err := g.Source.LoadGazetteer(ctx, g.Table)
	if err != nil {
		return err
	}
	for i := range entries {
		entries[i].Cleaned = CleanAddress(entries[i].Address)
	}

	var munprov []models.GazetteerEntry
	for _, e := range entries {
		if e.GeoLevel == levelMunicity || e.GeoLevel == levelProvdist {
			munprov = append(munprov, e)
		}
	}

	g.entries = entries
	g.munprov = munprov
	g.loaded = true
	return nil
}

// Reload forces a fresh read of the reference table.
func (g *Gazetteer) Reload(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load(ctx)
}

// snapshot returns the cached slices, loading on first use.
func (g *Gazetteer) snapshot(ctx context.Context) ([]models.GazetteerEntry, []models.GazetteerEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loaded {
		if err := g.load(ctx); err != nil {
			return nil, nil, err
		}
	}
	return g.entries, g.munprov, nil
}
