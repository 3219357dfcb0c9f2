package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env         string `mapstructure:"ENV"`
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AdminKey    string `mapstructure:"ADMIN_KEY"`
	CORSAllowed string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`

	HelpdeskBaseURL string        `mapstructure:"HELPDESK_BASE_URL"`
	HelpdeskAPIKey  string        `mapstructure:"HELPDESK_API_KEY"`
	PageConcurrency int           `mapstructure:"PAGE_CONCURRENCY"`
	PageDelay       time.Duration `mapstructure:"PAGE_DELAY"`

	LLMBaseURL string `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey  string `mapstructure:"LLM_API_KEY"`
	LLMModel   string `mapstructure:"LLM_MODEL"`

	// Timezone is the wall clock all warehouse timestamps are expressed in.
	Timezone          string `mapstructure:"TIMEZONE"`
	EnrichConcurrency int    `mapstructure:"ENRICH_CONCURRENCY"`
	WindowHours       int    `mapstructure:"WINDOW_HOURS"`
	BackfillDate      string `mapstructure:"BACKFILL_DATE"`
	SyncSchedule      string `mapstructure:"SYNC_SCHEDULE"`

	GeocodeInterval time.Duration `mapstructure:"GEOCODE_MIN_INTERVAL"`
	LocalMatchScore float64       `mapstructure:"LOCAL_MATCH_THRESHOLD"`
	ViableThreshold int           `mapstructure:"VIABLE_THRESHOLD"`
	ServiceableFile string        `mapstructure:"SERVICEABLE_FILE"`
	GazetteerTable  string        `mapstructure:"GAZETTEER_TABLE"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	// empty defaults register the keys so AutomaticEnv sees them on Unmarshal
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("ADMIN_KEY", "")
	v.SetDefault("HELPDESK_BASE_URL", "")
	v.SetDefault("HELPDESK_API_KEY", "")
	v.SetDefault("LLM_BASE_URL", "")
	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("PAGE_CONCURRENCY", 2)
	v.SetDefault("PAGE_DELAY", "400ms")
	v.SetDefault("LLM_MODEL", "gpt-4.1-mini")
	v.SetDefault("TIMEZONE", "Asia/Manila")
	v.SetDefault("ENRICH_CONCURRENCY", 5)
	v.SetDefault("WINDOW_HOURS", 6)
	v.SetDefault("BACKFILL_DATE", "2025-05-01")
	v.SetDefault("SYNC_SCHEDULE", "")
	v.SetDefault("GEOCODE_MIN_INTERVAL", "1250ms")
	v.SetDefault("LOCAL_MATCH_THRESHOLD", 0.1)
	v.SetDefault("VIABLE_THRESHOLD", 90)
	v.SetDefault("SERVICEABLE_FILE", "serviceable_areas.csv")
	v.SetDefault("GAZETTEER_TABLE", "address_location_psgc")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Location resolves the configured timezone, falling back to UTC when the
// zone database does not know it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
