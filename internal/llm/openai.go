package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// OpenAIExtractor talks to an OpenAI-compatible chat-completions endpoint
// using a JSON-schema response format so the reply is parseable into
// Analysis without prompt gymnastics.
type OpenAIExtractor struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Client    *http.Client
}

func (e OpenAIExtractor) Model() string {
	return e.ModelName
}

var analysisSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required": []string{
		"service_category", "summary", "intent_rating", "engagement_rating",
		"clarity_rating", "resolution_rating", "sentiment_rating", "location",
		"schedule_date", "schedule_time", "car", "contact_num", "payment",
		"inspection", "quotation",
	},
	"properties": map[string]any{
		"service_category":  map[string]any{"type": "string"},
		"summary":           map[string]any{"type": "string"},
		"intent_rating":     map[string]any{"type": "string"},
		"engagement_rating": map[string]any{"type": "integer"},
		"clarity_rating":    map[string]any{"type": "integer"},
		"resolution_rating": map[string]any{"type": "integer"},
		"sentiment_rating":  map[string]any{"type": "string"},
		"location":          map[string]any{"type": "string"},
		"schedule_date":     map[string]any{"type": "string"},
		"schedule_time":     map[string]any{"type": "string"},
		"car":               map[string]any{"type": "string"},
		"contact_num":       map[string]any{"type": "string"},
		"payment":           map[string]any{"type": "string"},
		"inspection":        map[string]any{"type": "string"},
		"quotation":         map[string]any{"type": "string"},
	},
}

func (e OpenAIExtractor) ExtractConversation(ctx context.Context, transcript string) (Analysis, int64, error) {
	if strings.TrimSpace(e.BaseURL) == "" {
		return Analysis{}, 0, fmt.Errorf("LLM_BASE_URL is not set")
	}
	if strings.TrimSpace(e.ModelName) == "" {
		return Analysis{}, 0, fmt.Errorf("LLM_MODEL is not set")
	}

	prompt := BuildPrompt(transcript, time.Now())

	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	payload := struct {
		Model          string `json:"model"`
		Messages       []msg  `json:"messages"`
		ResponseFormat any    `json:"response_format"`
	}{
		Model:    e.ModelName,
		Messages: []msg{{Role: "system", Content: prompt}},
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "conversation_analysis",
				"strict": true,
				"schema": analysisSchema,
			},
		},
	}

	b, _ := json.Marshal(payload)
	url := strings.TrimRight(e.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return Analysis{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(e.APIKey) != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return Analysis{}, 0, fmt.Errorf("extraction request timed out")
		}
		return Analysis{}, 0, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return Analysis{}, 0, fmt.Errorf("extraction http error: %s: %v", resp.Status, errBody)
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			TotalTokens int64 `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Analysis{}, 0, err
	}
	if len(res.Choices) == 0 {
		return Analysis{}, res.Usage.TotalTokens, fmt.Errorf("empty extraction response")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(res.Choices[0].Message.Content), &analysis); err != nil {
		return Analysis{}, res.Usage.TotalTokens, fmt.Errorf("malformed extraction payload: %w", err)
	}
	return analysis, res.Usage.TotalTokens, nil
}
