package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/desksync/backend/internal/enrich"
	"github.com/desksync/backend/internal/metrics"
	syncpkg "github.com/desksync/backend/internal/sync"
	"github.com/desksync/backend/internal/warehouse"
)

// Handler wires the trigger routes to the orchestrator and pipeline. Errors
// raised by a route are recorded for the run log and returned as a
// structured payload; only the core decides what is fatal to a run.
type Handler struct {
	Store        *warehouse.Store
	Orchestrator *syncpkg.Orchestrator
	Pipeline     *enrich.Pipeline
	RunLogger    *syncpkg.RunLogger
	Validator    *validator.Validate
	Logger       zerolog.Logger
	AdminKey     string
	WindowHours  int
	BackfillDate string

	errors *errorCollector
}

func New(store *warehouse.Store, orch *syncpkg.Orchestrator, pipeline *enrich.Pipeline, runLogger *syncpkg.RunLogger, logger zerolog.Logger, adminKey string, backfillDate string) *Handler {
	return &Handler{
		Store:        store,
		Orchestrator: orch,
		Pipeline:     pipeline,
		RunLogger:    runLogger,
		Validator:    validator.New(),
		Logger:       logger,
		AdminKey:     adminKey,
		WindowHours:  orch.WindowHours,
		BackfillDate: backfillDate,
		errors:       newErrorCollector(""),
	}
}

type syncParams struct {
	IsInitial bool   `form:"is_initial"`
	Date      string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) SyncAgents(c *gin.Context) {
	table := c.Param("table")
	records, err := h.Orchestrator.SyncAgents(c.Request.Context(), table)
	if err != nil {
		h.fail(c, "/sync/agents", "AGENT_SYNC_FAILED", err)
		return
	}
	metrics.RunsTotal.WithLabelValues("agents", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"table": table, "rows": len(records)})
}

func (h *Handler) SyncUsers(c *gin.Context) {
	table := c.Param("table")
	ids, err := h.Store.ExistingIDs(c.Request.Context(), syncpkg.MessagesTable, "userid", true)
	if err != nil {
		h.fail(c, "/sync/users", "USER_SYNC_FAILED", err)
		return
	}
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	records, err := h.Orchestrator.SyncUsers(c.Request.Context(), table, list)
	if err != nil {
		h.fail(c, "/sync/users", "USER_SYNC_FAILED", err)
		return
	}
	metrics.RunsTotal.WithLabelValues("users", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"table": table, "rows": len(records)})
}

func (h *Handler) SyncTags(c *gin.Context) {
	table := c.Param("table")
	records, err := h.Orchestrator.SyncTags(c.Request.Context(), table)
	if err != nil {
		h.fail(c, "/sync/tags", "TAG_SYNC_FAILED", err)
		return
	}
	metrics.RunsTotal.WithLabelValues("tags", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"table": table, "rows": len(records)})
}

// SyncTickets runs either the calendar-month backfill (is_initial with an
// optional month date) or the rolling incremental window. The incremental
// path also stamps the run-start marker the log route reads later.
func (h *Handler) SyncTickets(c *gin.Context) {
	table := c.Param("table")
	params, ok := h.bindParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		stats syncpkg.Stats
		err   error
	)
	if params.IsInitial {
		ref := h.backfillRef(params.Date)
		h.Logger.Info().Time("date", ref).Msg("running initial ticket extraction")
		stats, _, err = h.Orchestrator.SyncTickets(ctx, table, ref, syncpkg.FieldDateCreated)
	} else {
		now := time.Now().In(h.Orchestrator.Loc)
		if startErr := h.Orchestrator.RecordRunStart(ctx, now); startErr != nil {
			h.Logger.Warn().Err(startErr).Msg("run start marker write failed")
		}
		ref := syncpkg.IncrementalReference(naive(now), h.WindowHours)
		stats, _, err = h.Orchestrator.SyncTickets(ctx, table, ref, syncpkg.FieldDateChanged)
	}
	if err != nil {
		h.fail(c, "/sync/tickets", "TICKET_SYNC_FAILED", err)
		return
	}
	metrics.RunsTotal.WithLabelValues("tickets", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"table": table, "stats": stats})
}

// SyncTicketMessages selects ticket context from the warehouse for the
// window, flattens their threads, and backfills the users referenced by the
// new messages.
func (h *Handler) SyncTicketMessages(c *gin.Context) {
	table := c.Param("table")
	params, ok := h.bindParams(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var (
		refsLimit int
		perPage   = 100
		ref       time.Time
		window    syncpkg.FilterField
	)
	if params.IsInitial {
		// backlog: whole month of ticket creations, small message pages
		ref = h.backfillRef(params.Date)
		window = syncpkg.FieldDateCreated
		refsLimit = 100
		perPage = 10
	} else {
		now := time.Now().In(h.Orchestrator.Loc)
		ref = syncpkg.IncrementalReference(naive(now), h.WindowHours)
		window = syncpkg.FieldDateChanged
	}

	tickets, err := h.Orchestrator.TicketRefsForWindow(ctx, ref, window, refsLimit)
	if err != nil {
		h.fail(c, "/sync/ticket-messages", "MESSAGE_SYNC_FAILED", err)
		return
	}

	stats, userIDs, err := h.Orchestrator.SyncMessages(ctx, table, tickets, perPage)
	if err != nil {
		h.fail(c, "/sync/ticket-messages", "MESSAGE_SYNC_FAILED", err)
		return
	}

	if len(userIDs) > 0 {
		if _, err := h.Orchestrator.SyncUsers(ctx, "users", userIDs); err != nil {
			h.Logger.Warn().Err(err).Msg("user backfill failed")
		}
	}
	metrics.RunsTotal.WithLabelValues("messages", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"table": table, "stats": stats, "unique_users": len(userIDs)})
}

// SyncChatAnalysis enriches the conversations in the current rolling window.
func (h *Handler) SyncChatAnalysis(c *gin.Context) {
	table := c.Param("table")
	ctx := c.Request.Context()

	now := naive(time.Now().In(h.Orchestrator.Loc))
	ref := syncpkg.IncrementalReference(now, h.WindowHours)
	w := syncpkg.ComputeWindow(ref, syncpkg.FieldDateChanged, h.WindowHours)

	analyses, err := h.Pipeline.Run(ctx, table, w)
	if err != nil {
		h.fail(c, "/sync/chat-analysis", "ANALYSIS_FAILED", err)
		return
	}
	if analyses == nil {
		c.JSON(http.StatusOK, gin.H{"message": "no conversations found for the window", "rows": 0})
		return
	}
	metrics.RunsTotal.WithLabelValues("analysis", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{"table": table, "rows": len(analyses)})
}

// SyncLogs assembles and appends the run log, draining collected route
// errors into log_message.
func (h *Handler) SyncLogs(c *gin.Context) {
	table := c.Param("table")
	ctx := c.Request.Context()

	errs := h.errors.drain()
	logRow := h.RunLogger.Build(ctx, time.Now(), errs)
	if err := h.RunLogger.Write(ctx, table, logRow); err != nil {
		h.fail(c, "/sync/logs", "LOG_WRITE_FAILED", err)
		return
	}
	metrics.RunsTotal.WithLabelValues("logs", "ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"table":               table,
		"tickets_total":       logRow.TicketsTotal,
		"messages_total":      logRow.MessagesTotal,
		"total_tokens":        logRow.TotalTokens,
		"extraction_run_time": logRow.ExtractionRunTime,
	})
}

// ReloadGazetteer refreshes the resolver's cached reference table.
func (h *Handler) ReloadGazetteer(c *gin.Context) {
	if err := h.Pipeline.Resolver.Gazetteer.Reload(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, "GAZETTEER_RELOAD_FAILED", "Gazetteer reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}

func (h *Handler) bindParams(c *gin.Context) (syncParams, bool) {
	var params syncParams
	if err := c.ShouldBindQuery(&params); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid query parameters", err.Error())
		return params, false
	}
	if err := h.Validator.Struct(params); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", err.Error())
		return params, false
	}
	return params, true
}

// backfillRef parses the requested month start, defaulting to the configured
// backlog date.
func (h *Handler) backfillRef(date string) time.Time {
	if date == "" {
		date = h.BackfillDate
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		t, _ = time.Parse("2006-01-02", h.BackfillDate)
	}
	return t
}

func (h *Handler) fail(c *gin.Context, route, code string, err error) {
	h.Logger.Error().Err(err).Str("route", route).Msg("sync route failed")
	h.errors.add(route, err)
	metrics.RunsTotal.WithLabelValues(route, "error").Inc()
	writeError(c, http.StatusInternalServerError, code, err.Error(), nil)
}

func writeError(c *gin.Context, status int, code, message string, details any) {
	payload := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
		"status": "error",
	}
	if details != nil {
		payload["details"] = details
	}
	c.JSON(status, payload)
}

// naive strips the zone, leaving local wall clock for window math against
// naive warehouse timestamps.
func naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}
