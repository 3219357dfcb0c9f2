package models

import "time"

// Record is one warehouse-bound row as fetched and normalized from the
// helpdesk API. Schema inference operates on these.
type Record = map[string]any

type Agent struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Role           string     `json:"role"`
	Email          string     `json:"email"`
	Avatar         string     `json:"avatar_url"`
	LastPswdChange *time.Time `json:"last_pswd_change"`
}

// TicketRef carries the ticket context a message fetch needs: the owner for
// sender/receiver resolution and the assigned agent for the fallback receiver.
type TicketRef struct {
	ID        string `json:"id"`
	OwnerName string `json:"owner_name"`
	AgentID   string `json:"agentid"`
}

type TranscriptTurn struct {
	SenderType string `json:"sender_type"`
	Message    string `json:"message"`
}

type GazetteerEntry struct {
	Address      string  `json:"address"`
	Cleaned      string  `json:"-"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	GeoLevel     string  `json:"geo_level"`
	MunicityCode string  `json:"municity_code"`
	ProvdistCode string  `json:"provdist_code"`
}

// GeocodeMatch is the transient result of resolving one free-text address.
// It is merged into the analysis row, never persisted on its own.
type GeocodeMatch struct {
	InputAddress string  `json:"input_address"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Score        float64 `json:"score"`
	Source       string  `json:"source"`
	Error        string  `json:"error,omitempty"`
}

// ConversationAnalysis is one row per ticket id in convo_analysis, mutated
// only via merge-upsert keyed by TicketID.
type ConversationAnalysis struct {
	TicketID         string
	ServiceCategory  *string
	Summary          *string
	IntentRating     *string
	EngagementRating *int64
	ClarityRating    *int64
	ResolutionRating *int64
	SentimentRating  *string
	Location         *string
	ScheduleDate     *string
	ScheduleTime     *string
	Car              *string
	ContactNum       *string
	Payment          *string
	Inspection       *string
	Quotation        *string
	Tokens           int64
	Model            string
	GeoAddress       *string
	GeoLatitude      *float64
	GeoLongitude     *float64
	GeoSource        *string
	Viable           string
	DateExtracted    time.Time
}

// SyncRunLog matches the extraction_log table, one append-only row per
// scheduled run.
type SyncRunLog struct {
	ExtractionDate    time.Time
	ExtractionRunTime float64
	TicketsNew        int64
	TicketsUpdate     int64
	TicketsTotal      int64
	MessagesNew       int64
	MessagesOld       int64
	MessagesTotal     int64
	TotalTokens       int64
	Model             string
	LogMessage        string
}
