package llm

import "context"

// Analysis is the fixed rubric the extraction call must fill. The provider's
// echo is validated against this shape at the boundary instead of being
// trusted as-is.
type Analysis struct {
	ServiceCategory  string `json:"service_category"`
	Summary          string `json:"summary"`
	IntentRating     string `json:"intent_rating"`
	EngagementRating int64  `json:"engagement_rating"`
	ClarityRating    int64  `json:"clarity_rating"`
	ResolutionRating int64  `json:"resolution_rating"`
	SentimentRating  string `json:"sentiment_rating"`
	Location         string `json:"location"`
	ScheduleDate     string `json:"schedule_date"`
	ScheduleTime     string `json:"schedule_time"`
	Car              string `json:"car"`
	ContactNum       string `json:"contact_num"`
	Payment          string `json:"payment"`
	Inspection       string `json:"inspection"`
	Quotation        string `json:"quotation"`
}

// Extractor runs the structured-extraction call for one conversation and
// reports total token usage alongside the parsed result.
type Extractor interface {
	ExtractConversation(ctx context.Context, transcript string) (Analysis, int64, error)
	Model() string
}
