package sync

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/desksync/backend/internal/models"
	"github.com/desksync/backend/internal/warehouse"
)

const (
	MessagesTable = "messages"
	AnalysisTable = "convo_analysis"
)

// RunLogger assembles the per-run log row: new/updated counts recomputed
// from extraction stamps, token spend grouped by model, elapsed time from
// the run-start marker, and whatever errors the trigger layer collected. A
// failed run still gets a row with the counts that could be computed.
type RunLogger struct {
	Orchestrator *Orchestrator
}

// Build computes the run log for the run containing now. Counts are taken
// over the stamp range of the run itself, from the run-start marker up to
// now; the rolling data window the sync filtered on lies six hours in the
// past and can never contain the extraction stamps this run wrote.
func (r *RunLogger) Build(ctx context.Context, now time.Time, errs []string) models.SyncRunLog {
	o := r.Orchestrator
	local := now.In(o.Loc)
	naive := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), 0, time.UTC)

	log := models.SyncRunLog{
		ExtractionDate: naive,
		LogMessage:     "None",
	}
	if len(errs) > 0 {
		log.LogMessage = strings.Join(errs, "; ")
	}

	var started time.Time
	if marker, err := o.Store.LatestRunStart(ctx, MetadataTable, local.Format("2006-01-02")); err == nil {
		started = marker
		log.ExtractionRunTime = naive.Sub(marker).Round(10 * time.Millisecond).Seconds()
	} else {
		o.Logger.Warn().Err(err).Msg("no run start marker, elapsed time unavailable")
	}
	countStart, countEnd := stampRange(naive, started, o.WindowHours)

	ticketNew, ticketOld := r.countWindow(ctx, TicketsTable, "id", false, countStart, countEnd)
	log.TicketsNew, log.TicketsUpdate = ticketNew, ticketOld
	log.TicketsTotal = ticketNew + ticketOld

	msgNew, msgOld := r.countWindow(ctx, MessagesTable, "ticket_id", true, countStart, countEnd)
	log.MessagesNew, log.MessagesOld = msgNew, msgOld
	log.MessagesTotal = msgNew + msgOld

	if totals, err := o.Store.TokensByModel(ctx, AnalysisTable, countStart, countEnd); err == nil {
		names := make([]string, 0, len(totals))
		for model, tokens := range totals {
			log.TotalTokens += tokens
			if model != "" {
				names = append(names, model)
			}
		}
		sort.Strings(names)
		log.Model = strings.Join(names, ",")
	} else {
		o.Logger.Warn().Err(err).Msg("token totals unavailable")
	}

	return log
}

// stampRange is the half-open interval the run's extraction stamps fall in.
// It opens at the run-start marker when one exists and closes one second
// past now so the final second's stamps are included. Without a marker it
// reaches back windowHours as a bound on how long a run could have taken.
func stampRange(naive, started time.Time, windowHours int) (time.Time, time.Time) {
	end := naive.Add(time.Second)
	if started.IsZero() {
		return naive.Add(-time.Duration(windowHours) * time.Hour), end
	}
	return started, end
}

// countWindow splits the ids stamped inside [start, end) into previously
// unseen vs. already present.
func (r *RunLogger) countWindow(ctx context.Context, table, idColumn string, distinct bool, start, end time.Time) (int64, int64) {
	o := r.Orchestrator
	fromRun, err := o.Store.IDsExtractedBetween(ctx, table, idColumn, distinct, start, end)
	if err != nil {
		o.Logger.Warn().Err(err).Str("table", table).Msg("run id lookup failed")
		return 0, 0
	}
	existing, err := o.Store.ExistingIDs(ctx, table, idColumn, distinct)
	if err != nil {
		o.Logger.Warn().Err(err).Str("table", table).Msg("existing id lookup failed")
		return 0, 0
	}

	var newCount, oldCount int64
	for _, id := range fromRun {
		if _, ok := existing[id]; ok {
			oldCount++
		} else {
			newCount++
		}
	}
	return newCount, oldCount
}

// Write appends the run log row.
func (r *RunLogger) Write(ctx context.Context, table string, log models.SyncRunLog) error {
	record := models.Record{
		"extraction_date":     log.ExtractionDate,
		"extraction_run_time": log.ExtractionRunTime,
		"no_tickets_new":      log.TicketsNew,
		"no_tickets_update":   log.TicketsUpdate,
		"no_tickets_total":    log.TicketsTotal,
		"no_messages_new":     log.MessagesNew,
		"no_messages_old":     log.MessagesOld,
		"no_messages_total":   log.MessagesTotal,
		"total_tokens":        log.TotalTokens,
		"model":               log.Model,
		"log_message":         log.LogMessage,
	}
	records := []models.Record{record}
	_, err := r.Orchestrator.Store.Write(ctx, table, records, warehouse.InferSchema(records), warehouse.WriteAppend)
	return err
}
