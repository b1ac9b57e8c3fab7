package types

import "time"

// Prediction is a validated score prediction for one match.
type Prediction struct {
	MatchID   string `json:"match_id"`
	HomeScore int    `json:"home_score"`
	AwayScore int    `json:"away_score"`
}

// Attempt is the outcome of asking one model for a prediction in one batch.
// ModelID is always the model that was requested; ServedBy names the endpoint
// that actually answered and is for internal bookkeeping only.
type Attempt struct {
	BatchID       string        `json:"batch_id"`
	MatchID       string        `json:"match_id"`
	ModelID       string        `json:"model_id"`
	UsedFallback  bool          `json:"used_fallback"`
	ServedBy      string        `json:"-"`
	RawResponse   string        `json:"-"`
	Predictions   []Prediction  `json:"predictions,omitempty"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Err           error         `json:"-"`
	Usage         Usage         `json:"usage"`
	EstimatedCost float64       `json:"estimated_cost_usd"`
	Duration      time.Duration `json:"-"`
}

// OK reports whether the attempt produced at least one persisted prediction.
func (a Attempt) OK() bool {
	return a.Err == nil && len(a.Predictions) > 0
}

// Candidate is a prediction as extracted from model output, before validation.
// Scores are kept as raw JSON numbers so that fractional or out-of-range values
// can be rejected instead of coerced. A nil score means the field was missing or
// not a number.
type Candidate struct {
	MatchID   string   `json:"match_id"`
	HomeScore *float64 `json:"home_score"`
	AwayScore *float64 `json:"away_score"`
}
