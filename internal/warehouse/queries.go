package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/desksync/backend/internal/models"
)

// ExistingIDs returns the set of identifiers already present in a table,
// used to split a window's fetch into new vs. updated.
func (s *Store) ExistingIDs(ctx context.Context, table, idColumn string, distinct bool) (map[string]struct{}, error) {
	sel := pgx.Identifier{idColumn}.Sanitize()
	if distinct {
		sel = "DISTINCT " + sel
	}
	rows, err := s.Pool.Query(ctx, "SELECT "+sel+" FROM "+pgx.Identifier{table}.Sanitize())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// IDsExtractedBetween returns the identifiers stamped into a table during
// [start, end) by extraction timestamp.
func (s *Store) IDsExtractedBetween(ctx context.Context, table, idColumn string, distinct bool, start, end time.Time) ([]string, error) {
	sel := pgx.Identifier{idColumn}.Sanitize()
	if distinct {
		sel = "DISTINCT " + sel
	}
	rows, err := s.Pool.Query(ctx,
		"SELECT "+sel+" FROM "+pgx.Identifier{table}.Sanitize()+" WHERE datetime_extracted >= $1 AND datetime_extracted < $2",
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// TicketRefsBetween selects ticket context rows whose creation falls in the
// window, oldest first, for the message fetch.
func (s *Store) TicketRefsBetween(ctx context.Context, table string, start, end time.Time, limit int) ([]models.TicketRef, error) {
	q := "SELECT id, owner_name, agentid FROM " + pgx.Identifier{table}.Sanitize() +
		" WHERE date_created >= $1 AND date_created <= $2 ORDER BY date_created"
	args := []any{start, end}
	if limit > 0 {
		q += " LIMIT $3"
		args = append(args, limit)
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []models.TicketRef
	for rows.Next() {
		var r models.TicketRef
		var owner, agent *string
		if err := rows.Scan(&r.ID, &owner, &agent); err != nil {
			return nil, err
		}
		if owner != nil {
			r.OwnerName = *owner
		}
		if agent != nil {
			r.AgentID = *agent
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// DistinctTicketIDs returns the tickets referenced by messages created in the
// window, the selection the enrichment pipeline runs over.
func (s *Store) DistinctTicketIDs(ctx context.Context, messagesTable string, start, end time.Time) ([]string, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT DISTINCT ticket_id FROM "+pgx.Identifier{messagesTable}.Sanitize()+" WHERE datecreated BETWEEN $1 AND $2",
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Transcript returns a ticket's turns in creation order.
func (s *Store) Transcript(ctx context.Context, messagesTable, ticketID string) ([]models.TranscriptTurn, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT sender_type, message FROM "+pgx.Identifier{messagesTable}.Sanitize()+" WHERE ticket_id = $1 AND message IS NOT NULL ORDER BY message_datecreated",
		ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.TranscriptTurn
	for rows.Next() {
		var t models.TranscriptTurn
		var sender, message *string
		if err := rows.Scan(&sender, &message); err != nil {
			return nil, err
		}
		if sender != nil {
			t.SenderType = *sender
		}
		if message != nil {
			t.Message = *message
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ListAgents reads the warehouse copy of the agent roster for the message
// fetch cache.
func (s *Store) ListAgents(ctx context.Context, table string) ([]models.Agent, error) {
	rows, err := s.Pool.Query(ctx, "SELECT id, name, role FROM "+pgx.Identifier{table}.Sanitize())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		var a models.Agent
		var name, role *string
		if err := rows.Scan(&a.ID, &name, &role); err != nil {
			return nil, err
		}
		if name != nil {
			a.Name = *name
		}
		if role != nil {
			a.Role = *role
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// LoadGazetteer reads the address reference table used for local geocoding.
func (s *Store) LoadGazetteer(ctx context.Context, table string) ([]models.GazetteerEntry, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT address, latitude, longitude, geo_level, municity_code, provdist_code FROM "+pgx.Identifier{table}.Sanitize())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.GazetteerEntry
	for rows.Next() {
		var e models.GazetteerEntry
		var municity, provdist *string
		if err := rows.Scan(&e.Address, &e.Latitude, &e.Longitude, &e.GeoLevel, &municity, &provdist); err != nil {
			return nil, err
		}
		if municity != nil {
			e.MunicityCode = *municity
		}
		if provdist != nil {
			e.ProvdistCode = *provdist
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// TokensByModel aggregates LLM token spend grouped by model for analyses
// extracted in the window.
func (s *Store) TokensByModel(ctx context.Context, analysisTable string, start, end time.Time) (map[string]int64, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT model, COALESCE(SUM(tokens), 0) FROM "+pgx.Identifier{analysisTable}.Sanitize()+" WHERE date_extracted >= $1 AND date_extracted < $2 GROUP BY model",
		start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var model *string
		var total int64
		if err := rows.Scan(&model, &total); err != nil {
			return nil, err
		}
		name := ""
		if model != nil {
			name = *model
		}
		totals[name] = total
	}
	return totals, rows.Err()
}

// RecordRunStart appends the run-start marker used later to compute elapsed
// run time.
func (s *Store) RecordRunStart(ctx context.Context, table string, batchDate string, startedAt time.Time) error {
	if err := s.EnsureTable(ctx, table, Schema{
		{Name: "batch_date", Type: TypeText},
		{Name: "start_timestamp", Type: TypeTimestamp},
	}); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx,
		"INSERT INTO "+pgx.Identifier{table}.Sanitize()+" (batch_date, start_timestamp) VALUES ($1, $2)",
		batchDate, startedAt)
	return err
}

// LatestRunStart returns the most recent run-start marker for a batch date.
func (s *Store) LatestRunStart(ctx context.Context, table string, batchDate string) (time.Time, error) {
	var started time.Time
	err := s.Pool.QueryRow(ctx,
		"SELECT start_timestamp FROM "+pgx.Identifier{table}.Sanitize()+" WHERE batch_date = $1 ORDER BY start_timestamp DESC LIMIT 1",
		batchDate).Scan(&started)
	return started, err
}
