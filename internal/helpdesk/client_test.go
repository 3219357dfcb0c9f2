package helpdesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(baseURL string) *Client {
	c := NewClient(baseURL, "test-key", 2, time.Millisecond, zerolog.Nop())
	c.HTTP = &http.Client{Timeout: 5 * time.Second}
	return c
}

func pageHandler(t *testing.T, total, perPage int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t.Helper()
		if r.Header.Get("apikey") != "test-key" {
			t.Errorf("missing apikey header")
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("_page"))
		start := (page - 1) * perPage
		var items []map[string]any
		for i := start; i < start+perPage && i < total; i++ {
			items = append(items, map[string]any{"id": fmt.Sprintf("rec-%d", i)})
		}
		json.NewEncoder(w).Encode(items)
	}
}

func TestFetchAllPagesStopsOnEmptyPage(t *testing.T) {
	srv := httptest.NewServer(pageHandler(t, 25, 10))
	defer srv.Close()

	c := testClient(srv.URL)
	records := c.FetchAllPages(context.Background(), "/tickets", nil, "_page", 100)
	if len(records) != 25 {
		t.Fatalf("expected 25 records, got %d", len(records))
	}
	if records[0]["id"] != "rec-0" || records[24]["id"] != "rec-24" {
		t.Fatalf("records out of order: first=%v last=%v", records[0]["id"], records[24]["id"])
	}
}

func TestFetchAllPagesRespectsMaxPages(t *testing.T) {
	srv := httptest.NewServer(pageHandler(t, 1000, 10))
	defer srv.Close()

	c := testClient(srv.URL)
	records := c.FetchAllPages(context.Background(), "/tickets", nil, "_page", 3)
	if len(records) != 30 {
		t.Fatalf("expected 30 records at page cap, got %d", len(records))
	}
}

func TestFetchAllPagesKeepsPartialOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("_page"))
		if page == 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{"id": strconv.Itoa(page)}})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	records := c.FetchAllPages(context.Background(), "/tickets", nil, "_page", 100)
	if len(records) != 2 {
		t.Fatalf("expected the 2 pages before the failure, got %d", len(records))
	}
}

func TestFetchAllPagesCarriesQueryParams(t *testing.T) {
	var gotPerPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPerPage = r.URL.Query().Get("_perPage")
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer srv.Close()

	query := url.Values{}
	query.Set("_perPage", "100")
	c := testClient(srv.URL)
	c.FetchAllPages(context.Background(), "/tickets", query, "_page", 5)
	if gotPerPage != "100" {
		t.Fatalf("expected _perPage=100 forwarded, got %q", gotPerPage)
	}
}

func TestFetchPageConcurrencyBounded(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if n > peak {
			peak = n
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		json.NewEncoder(w).Encode([]map[string]any{{"id": "x"}})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.fetchPage(context.Background(), "/tickets", nil, "_page", 1)
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Fatalf("expected at most 2 requests in flight, saw %d", peak)
	}
}

func TestGetSingleResource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/u1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": "u1", "firstname": "Ana"})
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	rec, err := c.Get(context.Background(), "/users/u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec["firstname"] != "Ana" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := c.Get(context.Background(), "/users/missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestDecodePageShapes(t *testing.T) {
	recs, err := decodePage(strings.NewReader(`[{"id":"a"},{"id":"b"}]`))
	if err != nil || len(recs) != 2 {
		t.Fatalf("bare array: got %d records, err=%v", len(recs), err)
	}

	recs, err = decodePage(strings.NewReader(`{"data":[{"id":"a"}]}`))
	if err != nil || len(recs) != 1 {
		t.Fatalf("data wrapper: got %d records, err=%v", len(recs), err)
	}

	recs, err = decodePage(strings.NewReader(`{"message":"no results"}`))
	if err != nil || len(recs) != 0 {
		t.Fatalf("non-list body: got %d records, err=%v", len(recs), err)
	}
}
