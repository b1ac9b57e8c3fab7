// Package parser extracts score predictions from free-form model output.
package parser

import (
	"strconv"
	"strings"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// SampleLimit bounds the raw text kept on a parse failure.
const SampleLimit = 500

// Result is either a list of candidates or a parse failure.
type Result struct {
	Candidates []types.Candidate
	Strategy   string
	Failure    *failure.ParseError
}

// Err returns the parse failure as an error, or nil.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// Parse runs the strategy cascade over raw model output. Reasoning blocks are
// stripped first. Only when nothing at all remains outside them is the cascade
// retried on the raw text, for models that put the whole answer inside the tags.
func Parse(raw string, expectedMatchIDs []string) Result {
	stripped := strings.TrimSpace(StripThinking(raw))

	passes := []struct {
		text   string
		suffix string
	}{{stripped, ""}}
	if trimmed := strings.TrimSpace(raw); stripped == "" && trimmed != "" {
		passes = append(passes, struct {
			text   string
			suffix string
		}{trimmed, "+raw"})
	}

	for _, pass := range passes {
		if pass.text == "" {
			continue
		}
		for _, s := range strategies {
			v, ok := s.extract(pass.text)
			if !ok {
				continue
			}
			cands, ok := normalize(v)
			if !ok {
				continue
			}
			fillSingleMatchID(cands, expectedMatchIDs)
			return Result{Candidates: cands, Strategy: s.name + pass.suffix}
		}
	}

	reason := "no JSON structure found in output"
	if stripped == "" {
		reason = "output empty after stripping reasoning"
	}
	return Result{Failure: &failure.ParseError{
		Reason: reason,
		Sample: failure.Truncate(raw, SampleLimit),
	}}
}

// normalize turns a decoded JSON value into candidates: a single object becomes a
// one-element list and a {"predictions": [...]} envelope is unwrapped.
func normalize(v any) ([]types.Candidate, bool) {
	switch t := v.(type) {
	case map[string]any:
		if inner, ok := t["predictions"].([]any); ok {
			return normalize(inner)
		}
		return []types.Candidate{toCandidate(t)}, true
	case []any:
		var out []types.Candidate
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				out = append(out, toCandidate(m))
			}
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

func toCandidate(m map[string]any) types.Candidate {
	return types.Candidate{
		MatchID:   stringField(m, "match_id", "matchId"),
		HomeScore: numberField(m, "home_score", "homeScore"),
		AwayScore: numberField(m, "away_score", "awayScore"),
	}
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			return strings.TrimSpace(v)
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// numberField returns only genuine JSON numbers; "2" as a string is not coerced.
func numberField(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := m[k].(float64); ok {
			return &v
		}
	}
	return nil
}

func resemblesPrediction(cands []types.Candidate) bool {
	for _, c := range cands {
		if c.MatchID != "" || c.HomeScore != nil || c.AwayScore != nil {
			return true
		}
	}
	return false
}

func fillSingleMatchID(cands []types.Candidate, expected []string) {
	if len(expected) != 1 {
		return
	}
	for i := range cands {
		if cands[i].MatchID == "" {
			cands[i].MatchID = expected[0]
		}
	}
}
