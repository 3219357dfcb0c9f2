package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/desksync/backend/internal/config"
	"github.com/desksync/backend/internal/enrich"
	"github.com/desksync/backend/internal/geocode"
	"github.com/desksync/backend/internal/helpdesk"
	httpapi "github.com/desksync/backend/internal/http"
	"github.com/desksync/backend/internal/http/handlers"
	"github.com/desksync/backend/internal/llm"
	"github.com/desksync/backend/internal/sched"
	syncpkg "github.com/desksync/backend/internal/sync"
	"github.com/desksync/backend/internal/warehouse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "desksync").Logger()

	ctx := context.Background()
	store, err := warehouse.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	loc := cfg.Location()
	client := helpdesk.NewClient(cfg.HelpdeskBaseURL, cfg.HelpdeskAPIKey, cfg.PageConcurrency, cfg.PageDelay, logger)

	orch := &syncpkg.Orchestrator{
		Client:      client,
		Store:       store,
		Loc:         loc,
		WindowHours: cfg.WindowHours,
		Logger:      logger,
	}

	var extractor llm.Extractor
	if cfg.LLMBaseURL == "" {
		extractor = llm.MockExtractor{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock extractor")
	} else {
		extractor = llm.OpenAIExtractor{BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey, ModelName: cfg.LLMModel}
	}

	resolver := &geocode.Resolver{
		Gazetteer: &geocode.Gazetteer{Source: store, Table: cfg.GazetteerTable},
		Chain: []geocode.Geocoder{
			&geocode.NominatimGeocoder{MinInterval: cfg.GeocodeInterval},
			&geocode.PhotonGeocoder{},
		},
		Threshold: cfg.LocalMatchScore,
		Logger:    logger,
	}

	serviceable, err := geocode.LoadServiceable(cfg.ServiceableFile)
	if err != nil {
		logger.Warn().Err(err).Str("file", cfg.ServiceableFile).Msg("serviceable list unavailable, viability will be No")
	}

	pipeline := &enrich.Pipeline{
		Store:           store,
		Extractor:       extractor,
		Resolver:        resolver,
		Serviceable:     serviceable,
		ViableThreshold: cfg.ViableThreshold,
		Concurrency:     cfg.EnrichConcurrency,
		MessagesTable:   syncpkg.MessagesTable,
		Loc:             loc,
		Logger:          logger,
	}

	runLogger := &syncpkg.RunLogger{Orchestrator: orch}
	h := handlers.New(store, orch, pipeline, runLogger, logger, cfg.AdminKey, cfg.BackfillDate)
	router := httpapi.Router(cfg, h, logger)

	scheduler := &sched.Scheduler{
		Expr:   cfg.SyncSchedule,
		Run:    incrementalCycle(orch, pipeline, runLogger, loc, cfg.WindowHours, logger),
		Logger: logger,
	}
	schedCtx, stopSched := context.WithCancel(ctx)
	go scheduler.Start(schedCtx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopSched()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}

// incrementalCycle runs tickets → messages → analysis → log in sequence,
// the same order the HTTP routes are invoked by an external scheduler. A
// failed resource is logged and the rest of the cycle continues; the run
// log always gets written.
func incrementalCycle(orch *syncpkg.Orchestrator, pipeline *enrich.Pipeline, runLogger *syncpkg.RunLogger, loc *time.Location, windowHours int, logger zerolog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		now := time.Now().In(loc)
		naive := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), now.Second(), 0, time.UTC)
		ref := syncpkg.IncrementalReference(naive, windowHours)

		var errs []string
		if err := orch.RecordRunStart(ctx, now); err != nil {
			logger.Warn().Err(err).Msg("run start marker write failed")
		}

		if _, _, err := orch.SyncTickets(ctx, syncpkg.TicketsTable, ref, syncpkg.FieldDateChanged); err != nil {
			logger.Error().Err(err).Msg("scheduled ticket sync failed")
			errs = append(errs, "tickets: "+err.Error())
		}

		tickets, err := orch.TicketRefsForWindow(ctx, ref, syncpkg.FieldDateChanged, 0)
		if err != nil {
			logger.Error().Err(err).Msg("ticket selection failed")
			errs = append(errs, "ticket-messages: "+err.Error())
		} else if len(tickets) > 0 {
			if _, userIDs, err := orch.SyncMessages(ctx, syncpkg.MessagesTable, tickets, 100); err != nil {
				logger.Error().Err(err).Msg("scheduled message sync failed")
				errs = append(errs, "ticket-messages: "+err.Error())
			} else if len(userIDs) > 0 {
				if _, err := orch.SyncUsers(ctx, "users", userIDs); err != nil {
					logger.Warn().Err(err).Msg("user backfill failed")
				}
			}
		}

		w := syncpkg.ComputeWindow(ref, syncpkg.FieldDateChanged, windowHours)
		if _, err := pipeline.Run(ctx, syncpkg.AnalysisTable, w); err != nil {
			logger.Error().Err(err).Msg("scheduled analysis failed")
			errs = append(errs, "chat-analysis: "+err.Error())
		}

		logRow := runLogger.Build(ctx, time.Now(), errs)
		return runLogger.Write(ctx, "extraction_log", logRow)
	}
}
