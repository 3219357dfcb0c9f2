package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/desksync/backend/internal/helpdesk"
	"github.com/desksync/backend/internal/metrics"
	"github.com/desksync/backend/internal/models"
	"github.com/desksync/backend/internal/warehouse"
)

const (
	ticketMaxPages  = 100
	agentMaxPages   = 100
	tagMaxPages     = 20
	messageMaxPages = 100

	// TicketsTable is the canonical ticket table other jobs read from.
	TicketsTable  = "tickets"
	AgentsTable   = "agents"
	MetadataTable = "extraction_metadata"
)

// Stats splits a window's fetch into rows the warehouse had never seen and
// rows it already held.
type Stats struct {
	New     int `json:"new"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// Orchestrator runs one fetch→diff→load cycle per resource. It assumes a
// single active run at a time; nothing here serializes overlapping runs.
type Orchestrator struct {
	Client      *helpdesk.Client
	Store       *warehouse.Store
	Loc         *time.Location
	WindowHours int
	Logger      zerolog.Logger
}

// healthCheck gates every run: a failed ping aborts before any fetch.
func (o *Orchestrator) healthCheck(ctx context.Context) error {
	ok, body := o.Client.Ping(ctx)
	if !ok {
		return fmt.Errorf("helpdesk ping failed: %v", body)
	}
	return nil
}

// SyncTickets fetches every ticket touched in the window and merge-upserts
// them keyed on id. Stats come from diffing fetched ids against the
// warehouse before the load.
func (o *Orchestrator) SyncTickets(ctx context.Context, table string, ref time.Time, field FilterField) (Stats, []models.Record, error) {
	if err := o.healthCheck(ctx); err != nil {
		return Stats{}, nil, err
	}

	w := ComputeWindow(ref, field, o.WindowHours)
	o.Logger.Info().
		Time("start", w.Start).Time("end", w.End).Str("filter", string(field)).
		Msg("ticket window computed")

	fetcher := &helpdesk.TicketFetcher{Client: o.Client, Loc: o.Loc}
	records, err := fetcher.FetchWindow(ctx, string(field), w.Start, w.End, 100, ticketMaxPages)
	if err != nil {
		return Stats{}, nil, err
	}

	stats, err := o.diff(ctx, table, "id", false, records, "id")
	if err != nil {
		o.Logger.Warn().Err(err).Msg("ticket diff unavailable, counting all as new")
		stats = Stats{New: len(records), Total: len(records)}
	}

	schema := warehouse.InferSchema(records)
	if _, err := o.Store.MergeUpsert(ctx, table, records, schema, "id"); err != nil {
		return stats, nil, fmt.Errorf("ticket load: %w", err)
	}
	metrics.RowsLoaded.WithLabelValues(table).Add(float64(len(records)))
	return stats, records, nil
}

// SyncMessages flattens message threads for tickets created in the window
// and appends them. The agent cache is populated from the warehouse roster
// first, falling back to a live fetch; it must be complete before the first
// message is flattened.
func (o *Orchestrator) SyncMessages(ctx context.Context, table string, tickets []models.TicketRef, perPage int) (Stats, []string, error) {
	if err := o.healthCheck(ctx); err != nil {
		return Stats{}, nil, err
	}

	cache, err := o.agentCache(ctx)
	if err != nil {
		return Stats{}, nil, fmt.Errorf("agent cache: %w", err)
	}

	fetcher := helpdesk.NewMessageFetcher(o.Client, cache, o.Loc)
	records, err := fetcher.Fetch(ctx, tickets, perPage, messageMaxPages)
	if err != nil {
		return Stats{}, nil, err
	}

	stats, err := o.diff(ctx, table, "ticket_id", true, records, "ticket_id")
	if err != nil {
		o.Logger.Warn().Err(err).Msg("message diff unavailable, counting all as new")
		stats = Stats{New: len(records), Total: len(records)}
	}

	schema := warehouse.InferSchema(records)
	if _, err := o.Store.Write(ctx, table, records, schema, warehouse.WriteAppend); err != nil {
		return stats, nil, fmt.Errorf("message load: %w", err)
	}
	metrics.RowsLoaded.WithLabelValues(table).Add(float64(len(records)))
	return stats, fetcher.CollectedUserIDs(), nil
}

// SyncAgents appends the current agent roster.
func (o *Orchestrator) SyncAgents(ctx context.Context, table string) ([]models.Record, error) {
	if err := o.healthCheck(ctx); err != nil {
		return nil, err
	}

	fetcher := &helpdesk.AgentFetcher{Client: o.Client, Loc: o.Loc}
	records, err := fetcher.Fetch(ctx, agentMaxPages)
	if err != nil {
		return nil, err
	}
	schema := warehouse.InferSchema(records)
	if _, err := o.Store.Write(ctx, table, records, schema, warehouse.WriteAppend); err != nil {
		return nil, fmt.Errorf("agent load: %w", err)
	}
	metrics.RowsLoaded.WithLabelValues(table).Add(float64(len(records)))
	return records, nil
}

// SyncUsers resolves the given user ids and replaces the users table.
func (o *Orchestrator) SyncUsers(ctx context.Context, table string, ids []string) ([]models.Record, error) {
	if err := o.healthCheck(ctx); err != nil {
		return nil, err
	}

	fetcher := &helpdesk.UserFetcher{Client: o.Client}
	records, err := fetcher.FetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	schema := warehouse.InferSchema(records)
	if _, err := o.Store.Write(ctx, table, records, schema, warehouse.WriteTruncate); err != nil {
		return nil, fmt.Errorf("user load: %w", err)
	}
	metrics.RowsLoaded.WithLabelValues(table).Add(float64(len(records)))
	return records, nil
}

// SyncTags appends the tag list.
func (o *Orchestrator) SyncTags(ctx context.Context, table string) ([]models.Record, error) {
	if err := o.healthCheck(ctx); err != nil {
		return nil, err
	}

	fetcher := &helpdesk.TagFetcher{Client: o.Client}
	records, err := fetcher.Fetch(ctx, tagMaxPages)
	if err != nil {
		return nil, err
	}
	schema := warehouse.InferSchema(records)
	if _, err := o.Store.Write(ctx, table, records, schema, warehouse.WriteAppend); err != nil {
		return nil, fmt.Errorf("tag load: %w", err)
	}
	metrics.RowsLoaded.WithLabelValues(table).Add(float64(len(records)))
	return records, nil
}

// TicketRefsForWindow selects the ticket context for a message run from the
// warehouse copy.
func (o *Orchestrator) TicketRefsForWindow(ctx context.Context, ref time.Time, field FilterField, limit int) ([]models.TicketRef, error) {
	w := ComputeWindow(ref, field, o.WindowHours)
	return o.Store.TicketRefsBetween(ctx, TicketsTable, w.Start, w.End, limit)
}

// RecordRunStart stamps the extraction_metadata marker a later log run uses
// to compute elapsed time.
func (o *Orchestrator) RecordRunStart(ctx context.Context, now time.Time) error {
	local := now.In(o.Loc)
	naive := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)
	return o.Store.RecordRunStart(ctx, MetadataTable, local.Format("2006-01-02"), naive)
}

// agentCache prefers the warehouse roster; a live fetch covers a cold
// warehouse.
func (o *Orchestrator) agentCache(ctx context.Context) (*helpdesk.AgentCache, error) {
	agents, err := o.Store.ListAgents(ctx, AgentsTable)
	if err == nil && len(agents) > 0 {
		return helpdesk.NewAgentCache(agents), nil
	}
	if err != nil {
		o.Logger.Warn().Err(err).Msg("warehouse agent lookup failed, fetching live")
	}

	fetcher := &helpdesk.AgentFetcher{Client: o.Client, Loc: o.Loc}
	records, err := fetcher.Fetch(ctx, agentMaxPages)
	if err != nil {
		return nil, err
	}
	return helpdesk.NewAgentCacheFromRecords(records), nil
}

// diff splits fetched ids into new vs. updated against the warehouse's
// existing set, without asking the remote API to tell creates from updates.
func (o *Orchestrator) diff(ctx context.Context, table, idColumn string, distinct bool, records []models.Record, recordKey string) (Stats, error) {
	existing, err := o.Store.ExistingIDs(ctx, table, idColumn, distinct)
	if err != nil {
		return Stats{}, err
	}

	seen := make(map[string]struct{})
	stats := Stats{}
	for _, rec := range records {
		id, _ := rec[recordKey].(string)
		if id == "" {
			continue
		}
		if distinct {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}
		if _, ok := existing[id]; ok {
			stats.Updated++
		} else {
			stats.New++
		}
	}
	stats.Total = stats.New + stats.Updated
	return stats, nil
}
