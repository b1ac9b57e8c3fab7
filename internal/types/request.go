package types

import "time"

// CompletionRequest is the canonical chat request sent to a provider adapter.
// Adapters convert it to the vendor wire format.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MatchContext is the inbound unit of work: one fixture to predict.
type MatchContext struct {
	MatchID     string    `json:"match_id"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Competition string    `json:"competition,omitempty"`
	KickoffAt   time.Time `json:"kickoff_at,omitempty"`
}
