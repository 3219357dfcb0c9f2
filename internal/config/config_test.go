package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("unexpected port default: %s", cfg.Port)
	}
	if cfg.PageConcurrency != 2 || cfg.PageDelay != 400*time.Millisecond {
		t.Fatalf("unexpected pagination defaults: %d / %v", cfg.PageConcurrency, cfg.PageDelay)
	}
	if cfg.WindowHours != 6 || cfg.Timezone != "Asia/Manila" {
		t.Fatalf("unexpected window defaults: %d / %s", cfg.WindowHours, cfg.Timezone)
	}
	if cfg.GeocodeInterval != 1250*time.Millisecond {
		t.Fatalf("unexpected geocode interval: %v", cfg.GeocodeInterval)
	}
	if cfg.LocalMatchScore != 0.1 || cfg.ViableThreshold != 90 {
		t.Fatalf("unexpected match thresholds: %f / %d", cfg.LocalMatchScore, cfg.ViableThreshold)
	}
	if cfg.GazetteerTable != "address_location_psgc" {
		t.Fatalf("unexpected gazetteer table: %s", cfg.GazetteerTable)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("WINDOW_HOURS", "12")
	t.Setenv("HELPDESK_BASE_URL", "https://desk.example.com/api/v3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.WindowHours != 12 {
		t.Fatalf("env override ignored: %d", cfg.WindowHours)
	}
	if cfg.HelpdeskBaseURL != "https://desk.example.com/api/v3" {
		t.Fatalf("env override ignored: %s", cfg.HelpdeskBaseURL)
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.UTC {
		t.Fatal("unknown zone should fall back to UTC")
	}

	cfg = Config{Timezone: "Asia/Manila"}
	loc := cfg.Location()
	if loc == time.UTC {
		t.Skip("zone database unavailable")
	}
	if loc.String() != "Asia/Manila" {
		t.Fatalf("unexpected location: %v", loc)
	}
}
