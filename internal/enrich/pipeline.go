package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/desksync/backend/internal/geocode"
	"github.com/desksync/backend/internal/llm"
	"github.com/desksync/backend/internal/metrics"
	"github.com/desksync/backend/internal/models"
	syncpkg "github.com/desksync/backend/internal/sync"
	"github.com/desksync/backend/internal/warehouse"
)

const historySuffix = "_history"

// ConversationStore is the slice of the warehouse the pipeline needs:
// conversation selection, transcript reads, and the two analysis loads.
// *warehouse.Store satisfies it.
type ConversationStore interface {
	DistinctTicketIDs(ctx context.Context, messagesTable string, start, end time.Time) ([]string, error)
	Transcript(ctx context.Context, messagesTable, ticketID string) ([]models.TranscriptTurn, error)
	MergeUpsert(ctx context.Context, table string, records []models.Record, schema warehouse.Schema, keyColumn string) (int64, error)
	Write(ctx context.Context, table string, records []models.Record, schema warehouse.Schema, mode warehouse.WriteMode) (int64, error)
}

// Pipeline enriches the conversations touched in a window: bounded-fan-out
// LLM extraction per ticket, geocoding of the extracted address, a
// service-area flag, then merge-upsert plus an append-only history row.
type Pipeline struct {
	Store           ConversationStore
	Extractor       llm.Extractor
	Resolver        *geocode.Resolver
	Serviceable     []string
	ViableThreshold int
	Concurrency     int
	MessagesTable   string
	Loc             *time.Location
	Logger          zerolog.Logger
}

// Run enriches every ticket with messages created inside the window and
// writes the batch to table (merge-upsert on ticket_id) and its history
// table (append). Returns the analyses, or nil when the window held nothing.
func (p *Pipeline) Run(ctx context.Context, table string, w syncpkg.Window) ([]models.ConversationAnalysis, error) {
	ids, err := p.Store.DistinctTicketIDs(ctx, p.MessagesTable, w.Start, w.End)
	if err != nil {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	if len(ids) == 0 {
		p.Logger.Info().Time("start", w.Start).Time("end", w.End).Msg("no conversations in window")
		return nil, nil
	}

	extracted := time.Now().In(p.Loc)
	extracted = time.Date(extracted.Year(), extracted.Month(), extracted.Day(),
		extracted.Hour(), extracted.Minute(), extracted.Second(), 0, time.UTC)

	analyses := make([]models.ConversationAnalysis, len(ids))

	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			analyses[i] = p.analyzeConversation(gctx, id, extracted)
			return nil
		})
	}
	// workers never return errors; failures are isolated into null rows
	_ = g.Wait()

	// External geocoders are rate limited, so address resolution stays
	// sequential after the fan-out.
	for i := range analyses {
		p.applyGeocode(ctx, &analyses[i])
	}

	records := make([]models.Record, len(analyses))
	for i, a := range analyses {
		records[i] = analysisRecord(a)
	}
	schema := warehouse.InferSchema(records)
	if _, err := p.Store.MergeUpsert(ctx, table, records, schema, "ticket_id"); err != nil {
		return nil, fmt.Errorf("analysis load: %w", err)
	}
	if _, err := p.Store.Write(ctx, table+historySuffix, records, schema, warehouse.WriteAppend); err != nil {
		return nil, fmt.Errorf("analysis history load: %w", err)
	}
	metrics.RowsLoaded.WithLabelValues(table).Add(float64(len(records)))
	return analyses, nil
}

// analyzeConversation runs one extraction. Any failure, provider errors
// included, yields a row with null structured fields and a token count
// derived from the prompt alone, so cost accounting survives failed calls.
func (p *Pipeline) analyzeConversation(ctx context.Context, ticketID string, extracted time.Time) models.ConversationAnalysis {
	analysis := models.ConversationAnalysis{
		TicketID:      ticketID,
		Model:         p.Extractor.Model(),
		DateExtracted: extracted,
	}

	turns, err := p.Store.Transcript(ctx, p.MessagesTable, ticketID)
	if err != nil || len(turns) == 0 {
		if err != nil {
			p.Logger.Error().Err(err).Str("ticket_id", ticketID).Msg("transcript read failed")
		}
		metrics.ExtractionFailures.Inc()
		return analysis
	}
	transcript := BuildTranscript(turns)

	result, tokens, err := p.Extractor.ExtractConversation(ctx, transcript)
	if err != nil {
		p.Logger.Error().Err(err).Str("ticket_id", ticketID).Msg("extraction failed")
		metrics.ExtractionFailures.Inc()
		analysis.Tokens = llm.ApproxTokens(llm.BuildPrompt(transcript, extracted))
		metrics.LLMTokens.WithLabelValues(analysis.Model).Add(float64(analysis.Tokens))
		return analysis
	}

	analysis.Tokens = tokens
	analysis.ServiceCategory = ptr(result.ServiceCategory)
	analysis.Summary = ptr(result.Summary)
	analysis.IntentRating = ptr(result.IntentRating)
	analysis.EngagementRating = ptrInt(result.EngagementRating)
	analysis.ClarityRating = ptrInt(result.ClarityRating)
	analysis.ResolutionRating = ptrInt(result.ResolutionRating)
	analysis.SentimentRating = ptr(result.SentimentRating)
	analysis.Location = ptr(result.Location)
	analysis.ScheduleDate = ptr(result.ScheduleDate)
	analysis.ScheduleTime = ptr(result.ScheduleTime)
	analysis.Car = ptr(result.Car)
	analysis.ContactNum = ptr(result.ContactNum)
	analysis.Payment = ptr(result.Payment)
	analysis.Inspection = ptr(result.Inspection)
	analysis.Quotation = ptr(result.Quotation)
	metrics.LLMTokens.WithLabelValues(analysis.Model).Add(float64(tokens))
	return analysis
}

// applyGeocode resolves the extracted address and computes the service-area
// flag. Geocoding failures leave null coordinates; they never abort the
// batch.
func (p *Pipeline) applyGeocode(ctx context.Context, a *models.ConversationAnalysis) {
	a.Viable = "No"
	if a.Location == nil || strings.TrimSpace(*a.Location) == "" {
		return
	}

	if match := p.Resolver.Geocode(ctx, *a.Location); match != nil {
		a.GeoAddress = &match.Address
		a.GeoLatitude = &match.Latitude
		a.GeoLongitude = &match.Longitude
		a.GeoSource = &match.Source
	}
	a.Viable = geocode.Viable(*a.Location, p.Serviceable, p.ViableThreshold)
}

// BuildTranscript renders turns as the newline-delimited form the rubric
// prompt expects, in creation order.
func BuildTranscript(turns []models.TranscriptTurn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = fmt.Sprintf("sender: %s\nmessage: %s", t.SenderType, t.Message)
	}
	return strings.Join(parts, "\n\n")
}

// analysisRecord flattens an analysis for the loader. Match diagnostics
// (raw score, input echo) are dropped here; only the resolved address,
// coordinates, and source land in the warehouse.
func analysisRecord(a models.ConversationAnalysis) models.Record {
	return models.Record{
		"ticket_id":         a.TicketID,
		"service_category":  strOrNil(a.ServiceCategory),
		"summary":           strOrNil(a.Summary),
		"intent_rating":     strOrNil(a.IntentRating),
		"engagement_rating": intOrNil(a.EngagementRating),
		"clarity_rating":    intOrNil(a.ClarityRating),
		"resolution_rating": intOrNil(a.ResolutionRating),
		"sentiment_rating":  strOrNil(a.SentimentRating),
		"location":          strOrNil(a.Location),
		"schedule_date":     strOrNil(a.ScheduleDate),
		"schedule_time":     strOrNil(a.ScheduleTime),
		"car":               strOrNil(a.Car),
		"contact_num":       strOrNil(a.ContactNum),
		"payment":           strOrNil(a.Payment),
		"inspection":        strOrNil(a.Inspection),
		"quotation":         strOrNil(a.Quotation),
		"tokens":            a.Tokens,
		"model":             a.Model,
		"address":           strOrNil(a.GeoAddress),
		"latitude":          floatOrNil(a.GeoLatitude),
		"longitude":         floatOrNil(a.GeoLongitude),
		"source":            strOrNil(a.GeoSource),
		"viable":            a.Viable,
		"date_extracted":    a.DateExtracted,
	}
}

func ptr(s string) *string { return &s }

func ptrInt(i int64) *int64 { return &i }

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intOrNil(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
