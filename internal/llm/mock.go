package llm

import (
	"context"
	"fmt"
	"hash/fnv"
)

// MockExtractor produces deterministic analyses keyed off the transcript, for
// local runs without a provider.
type MockExtractor struct {
	ModelVersion string
}

func (m MockExtractor) Model() string {
	return m.ModelVersion
}

func (m MockExtractor) ExtractConversation(ctx context.Context, transcript string) (Analysis, int64, error) {
	h := hashString(transcript)

	intents := []string{"low", "medium", "high"}
	sentiments := []string{"negative", "neutral", "positive"}
	categories := []string{"PMS", "diagnosis", "repair", "car buying assistance"}

	analysis := Analysis{
		ServiceCategory:  categories[int(h)%len(categories)],
		Summary:          fmt.Sprintf("Mock summary for a %d-character conversation", len(transcript)),
		IntentRating:     intents[int(h/7)%len(intents)],
		EngagementRating: int64(h%5) + 1,
		ClarityRating:    int64(h/3%5) + 1,
		ResolutionRating: int64(h/11%5) + 1,
		SentimentRating:  sentiments[int(h/13)%len(sentiments)],
		Location:         "Quezon City",
		Car:              "2018 Toyota Vios 1.3 E",
	}
	return analysis, ApproxTokens(transcript), nil
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
