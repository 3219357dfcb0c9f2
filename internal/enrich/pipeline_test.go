package enrich

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/desksync/backend/internal/geocode"
	"github.com/desksync/backend/internal/llm"
	"github.com/desksync/backend/internal/models"
	syncpkg "github.com/desksync/backend/internal/sync"
	"github.com/desksync/backend/internal/warehouse"
)

func TestBuildTranscript(t *testing.T) {
	turns := []models.TranscriptTurn{
		{SenderType: "client", Message: "my Vios needs a PMS"},
		{SenderType: "agent", Message: "sure, where are you located?"},
		{SenderType: "client", Message: "Quezon City"},
	}
	got := BuildTranscript(turns)
	want := "sender: client\nmessage: my Vios needs a PMS\n\n" +
		"sender: agent\nmessage: sure, where are you located?\n\n" +
		"sender: client\nmessage: Quezon City"
	if got != want {
		t.Fatalf("unexpected transcript:\n%s", got)
	}

	if BuildTranscript(nil) != "" {
		t.Fatal("no turns should render empty")
	}
}

type memoryStore struct {
	mu      sync.Mutex
	ids     []string
	turns   map[string][]models.TranscriptTurn
	upserts map[string][]models.Record
	appends map[string][]models.Record
}

func (s *memoryStore) DistinctTicketIDs(ctx context.Context, messagesTable string, start, end time.Time) ([]string, error) {
	return s.ids, nil
}

func (s *memoryStore) Transcript(ctx context.Context, messagesTable, ticketID string) ([]models.TranscriptTurn, error) {
	return s.turns[ticketID], nil
}

func (s *memoryStore) MergeUpsert(ctx context.Context, table string, records []models.Record, schema warehouse.Schema, keyColumn string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upserts == nil {
		s.upserts = map[string][]models.Record{}
	}
	s.upserts[table] = append(s.upserts[table], records...)
	return int64(len(records)), nil
}

func (s *memoryStore) Write(ctx context.Context, table string, records []models.Record, schema warehouse.Schema, mode warehouse.WriteMode) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appends == nil {
		s.appends = map[string][]models.Record{}
	}
	s.appends[table] = append(s.appends[table], records...)
	return int64(len(records)), nil
}

// gateExtractor records the highest number of calls it ever saw running at
// the same time.
type gateExtractor struct {
	inFlight atomic.Int64
	peak     atomic.Int64
}

func (g *gateExtractor) ExtractConversation(ctx context.Context, transcript string) (llm.Analysis, int64, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	return llm.Analysis{Summary: "done"}, 10, nil
}

func (g *gateExtractor) Model() string { return "gate" }

// flakyExtractor fails a fixed set of tickets by transcript content.
type flakyExtractor struct {
	failOn string
}

func (f flakyExtractor) ExtractConversation(ctx context.Context, transcript string) (llm.Analysis, int64, error) {
	if transcript == f.failOn {
		return llm.Analysis{}, 0, errors.New("upstream rejected the request")
	}
	return llm.Analysis{Summary: "ok", EngagementRating: 4}, 42, nil
}

func (f flakyExtractor) Model() string { return "flaky" }

func enrichWindow() syncpkg.Window {
	return syncpkg.Window{
		Start: time.Date(2025, 7, 8, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 7, 8, 20, 59, 59, 0, time.UTC),
	}
}

func TestRunBoundsExtractionFanOut(t *testing.T) {
	store := &memoryStore{turns: map[string][]models.TranscriptTurn{}}
	for i := 0; i < 30; i++ {
		id := string(rune('a' + i%26)) + string(rune('0'+i/26))
		store.ids = append(store.ids, id)
		store.turns[id] = []models.TranscriptTurn{{SenderType: "client", Message: "need a PMS"}}
	}

	extractor := &gateExtractor{}
	p := &Pipeline{
		Store:         store,
		Extractor:     extractor,
		Concurrency:   5,
		MessagesTable: "messages",
		Loc:           time.UTC,
		Logger:        zerolog.Nop(),
	}

	analyses, err := p.Run(context.Background(), "convo_analysis", enrichWindow())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(analyses) != len(store.ids) {
		t.Fatalf("got %d analyses for %d tickets", len(analyses), len(store.ids))
	}
	if peak := extractor.peak.Load(); peak > 5 {
		t.Fatalf("%d extractions ran at once, limit is 5", peak)
	}
	if len(store.upserts["convo_analysis"]) != len(store.ids) {
		t.Fatalf("upserted %d rows, want %d", len(store.upserts["convo_analysis"]), len(store.ids))
	}
	if len(store.appends["convo_analysis_history"]) != len(store.ids) {
		t.Fatalf("history got %d rows, want %d", len(store.appends["convo_analysis_history"]), len(store.ids))
	}
}

func TestRunIsolatesFailedExtractions(t *testing.T) {
	badTranscript := "sender: client\nmessage: gibberish"
	store := &memoryStore{
		ids: []string{"t1", "t2"},
		turns: map[string][]models.TranscriptTurn{
			"t1": {{SenderType: "client", Message: "gibberish"}},
			"t2": {{SenderType: "client", Message: "book me in Makati"}},
		},
	}
	p := &Pipeline{
		Store:         store,
		Extractor:     flakyExtractor{failOn: badTranscript},
		MessagesTable: "messages",
		Loc:           time.UTC,
		Logger:        zerolog.Nop(),
	}

	analyses, err := p.Run(context.Background(), "convo_analysis", enrichWindow())
	if err != nil {
		t.Fatalf("one bad conversation should not fail the batch: %v", err)
	}

	byID := map[string]models.ConversationAnalysis{}
	for _, a := range analyses {
		byID[a.TicketID] = a
	}
	failed := byID["t1"]
	if failed.Summary != nil || failed.EngagementRating != nil {
		t.Fatalf("failed extraction should leave null fields, got %+v", failed)
	}
	// Cost accounting falls back to the prompt size; the date slot in the
	// prompt is fixed width, so any day yields the same estimate.
	want := llm.ApproxTokens(llm.BuildPrompt(badTranscript, time.Now()))
	if failed.Tokens != want {
		t.Fatalf("fallback tokens = %d, want %d", failed.Tokens, want)
	}

	ok := byID["t2"]
	if ok.Summary == nil || *ok.Summary != "ok" || ok.Tokens != 42 {
		t.Fatalf("healthy conversation mishandled: %+v", ok)
	}

	rows := store.upserts["convo_analysis"]
	if len(rows) != 2 {
		t.Fatalf("want both rows loaded, got %d", len(rows))
	}
}

type listSource struct {
	entries []models.GazetteerEntry
}

func (s listSource) LoadGazetteer(ctx context.Context, table string) ([]models.GazetteerEntry, error) {
	return s.entries, nil
}

func testPipeline() *Pipeline {
	source := listSource{entries: []models.GazetteerEntry{
		{Address: "Quezon City", GeoLevel: "municity", MunicityCode: "137404", Latitude: 14.676, Longitude: 121.0437},
		{Address: "Barangay Commonwealth, Quezon City", GeoLevel: "barangay", MunicityCode: "137404", Latitude: 14.6989, Longitude: 121.0891},
	}}
	return &Pipeline{
		Resolver: &geocode.Resolver{
			Gazetteer: &geocode.Gazetteer{Source: source},
			Threshold: 0.1,
			Logger:    zerolog.Nop(),
		},
		Serviceable:     []string{"quezon city", "makati"},
		ViableThreshold: 90,
		Logger:          zerolog.Nop(),
	}
}

func TestApplyGeocode(t *testing.T) {
	p := testPipeline()

	loc := "Barangay Commonwealth, Quezon City"
	a := models.ConversationAnalysis{TicketID: "t1", Location: &loc}
	p.applyGeocode(context.Background(), &a)

	if a.GeoAddress == nil || *a.GeoAddress != "Barangay Commonwealth, Quezon City" {
		t.Fatalf("expected a local match, got %+v", a)
	}
	if a.GeoLatitude == nil || *a.GeoLatitude != 14.6989 {
		t.Fatalf("unexpected latitude: %+v", a.GeoLatitude)
	}
	if a.GeoSource == nil || *a.GeoSource != geocode.SourceLocal {
		t.Fatalf("unexpected source: %+v", a.GeoSource)
	}
}

func TestApplyGeocodeNoLocation(t *testing.T) {
	p := testPipeline()

	a := models.ConversationAnalysis{TicketID: "t1"}
	p.applyGeocode(context.Background(), &a)
	if a.Viable != "No" {
		t.Fatalf("missing location should never be viable, got %s", a.Viable)
	}
	if a.GeoAddress != nil {
		t.Fatal("no location should leave geocode fields null")
	}

	blank := "   "
	a = models.ConversationAnalysis{TicketID: "t2", Location: &blank}
	p.applyGeocode(context.Background(), &a)
	if a.Viable != "No" || a.GeoAddress != nil {
		t.Fatalf("blank location should behave like a missing one, got %+v", a)
	}
}

func TestApplyGeocodeViableIndependentOfMatch(t *testing.T) {
	p := testPipeline()

	// Serviceable by name even though the gazetteer has no close entry.
	loc := "Makati"
	a := models.ConversationAnalysis{TicketID: "t1", Location: &loc}
	p.applyGeocode(context.Background(), &a)
	if a.Viable != "Yes" {
		t.Fatalf("service-area flag should not depend on a coordinate hit, got %s", a.Viable)
	}
}

func TestAnalysisRecordNullHandling(t *testing.T) {
	extracted := time.Date(2025, 7, 8, 21, 0, 0, 0, time.UTC)
	a := models.ConversationAnalysis{
		TicketID:      "t1",
		Model:         "gpt-4.1-mini",
		Tokens:        512,
		Viable:        "No",
		DateExtracted: extracted,
	}

	rec := analysisRecord(a)
	if rec["ticket_id"] != "t1" || rec["model"] != "gpt-4.1-mini" {
		t.Fatalf("unexpected identity fields: %+v", rec)
	}
	if rec["summary"] != nil || rec["engagement_rating"] != nil || rec["latitude"] != nil {
		t.Fatalf("failed extraction should land as nulls, got %+v", rec)
	}
	if rec["tokens"] != int64(512) {
		t.Fatalf("tokens should survive a failed extraction, got %v", rec["tokens"])
	}
	if rec["date_extracted"] != extracted {
		t.Fatalf("unexpected extraction stamp: %v", rec["date_extracted"])
	}

	summary := "Customer booked a PMS."
	rating := int64(4)
	lat := 14.6
	a.Summary = &summary
	a.EngagementRating = &rating
	a.GeoLatitude = &lat
	rec = analysisRecord(a)
	if rec["summary"] != summary || rec["engagement_rating"] != rating || rec["latitude"] != lat {
		t.Fatalf("populated fields should be dereferenced, got %+v", rec)
	}

	if _, ok := rec["score"]; ok {
		t.Fatal("match diagnostics should not reach the warehouse row")
	}
	if _, ok := rec["input_address"]; ok {
		t.Fatal("match diagnostics should not reach the warehouse row")
	}
}
