package helpdesk

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desksync/backend/internal/models"
)

// ErrEmptyResult marks a fetch that completed but produced zero rows where
// rows were expected. Distinct from a transport failure, which ends
// pagination early with whatever was accumulated.
var ErrEmptyResult = errors.New("fetch returned no rows")

var ticketTimestampFields = []string{
	"date_created", "date_changed", "date_resolved",
	"last_activity", "last_activity_public",
	"date_due", "date_deleted", "datetime_extracted",
}

type TicketFetcher struct {
	Client *Client
	Loc    *time.Location
}

// BuildDateFilters renders the remote `_filters` parameter: a JSON array of
// [field, operator, value] triples bounding the window on both sides.
func BuildDateFilters(field string, start, end time.Time) string {
	triples := [][]string{
		{field, "D>=", start.Format("2006-01-02 15:04:05")},
		{field, "D<=", end.Format("2006-01-02 15:04:05")},
	}
	b, _ := json.Marshal(triples)
	return string(b)
}

// FetchWindow pulls every ticket touched in [start, end] on filterField and
// normalizes each row for loading: tags collapse to a comma-joined string,
// the custom-field container collapses to a single map or nil, timestamps
// become local naive, and an extraction timestamp is stamped.
func (f *TicketFetcher) FetchWindow(ctx context.Context, filterField string, start, end time.Time, perPage, maxPages int) ([]models.Record, error) {
	query := url.Values{}
	query.Set("_perPage", strconv.Itoa(perPage))
	query.Set("_filters", BuildDateFilters(filterField, start, end))
	if filterField == "date_created" {
		query.Set("_sortDir", "ASC")
	}

	records := f.Client.FetchAllPages(ctx, "/tickets", query, "_page", maxPages)
	if len(records) == 0 {
		return nil, ErrEmptyResult
	}

	extracted := time.Now().UTC()
	for _, rec := range records {
		rec["tags"] = joinTags(rec["tags"])
		rec["custom_fields"] = collapseCustomFields(rec["custom_fields"])
		rec["datetime_extracted"] = extracted
		localizeFields(rec, f.Loc, ticketTimestampFields...)
	}
	return records, nil
}

func joinTags(v any) string {
	items, ok := v.([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ",")
}

// collapseCustomFields keeps a single-element list of one map as that map;
// every other shape the remote sends becomes nil.
func collapseCustomFields(v any) any {
	items, ok := v.([]any)
	if !ok || len(items) != 1 {
		return nil
	}
	if m, ok := items[0].(map[string]any); ok {
		return m
	}
	return nil
}

// Refs projects fetched ticket records down to the context message fetching
// needs.
func Refs(records []models.Record) []models.TicketRef {
	refs := make([]models.TicketRef, 0, len(records))
	for _, rec := range records {
		refs = append(refs, models.TicketRef{
			ID:        str(rec["id"]),
			OwnerName: str(rec["owner_name"]),
			AgentID:   str(rec["agentid"]),
		})
	}
	return refs
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
