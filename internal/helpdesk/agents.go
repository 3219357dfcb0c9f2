package helpdesk

import (
	"context"
	"net/url"
	"time"

	"github.com/desksync/backend/internal/models"
)

type AgentFetcher struct {
	Client *Client
	Loc    *time.Location
}

// Fetch paginates /agents and localizes credential timestamps.
func (f *AgentFetcher) Fetch(ctx context.Context, maxPages int) ([]models.Record, error) {
	records := f.Client.FetchAllPages(ctx, "/agents", url.Values{}, "_page", maxPages)
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}
	for _, rec := range records {
		localizeFields(rec, f.Loc, "last_pswd_change")
	}
	return records, nil
}

// AgentCache resolves agent ids to display names for the lifetime of a sync
// run. It must be fully populated before any message fetch begins; lookups
// never fill lazily.
type AgentCache struct {
	byID map[string]models.Agent
}

func NewAgentCache(agents []models.Agent) *AgentCache {
	byID := make(map[string]models.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID] = a
	}
	return &AgentCache{byID: byID}
}

// NewAgentCacheFromRecords builds a cache straight from fetched agent pages,
// the fallback when the warehouse copy is unavailable.
func NewAgentCacheFromRecords(records []models.Record) *AgentCache {
	agents := make([]models.Agent, 0, len(records))
	for _, rec := range records {
		agents = append(agents, models.Agent{
			ID:   str(rec["id"]),
			Name: str(rec["name"]),
			Role: str(rec["role"]),
		})
	}
	return NewAgentCache(agents)
}

func (c *AgentCache) Lookup(id string) (models.Agent, bool) {
	a, ok := c.byID[id]
	return a, ok
}

func (c *AgentCache) Len() int {
	return len(c.byID)
}
