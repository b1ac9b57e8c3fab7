// Package screen checks inbound fixture fields before they are interpolated
// into model prompts. Team and competition names are free text from upstream
// feeds; a field that looks like an instruction is rejected or flagged.
package screen

import (
	"fmt"

	"github.com/af-corp/prediction-orchestrator/internal/config"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// Action is the screening decision.
type Action string

const (
	ActionPass  Action = "pass"
	ActionFlag  Action = "flag"
	ActionBlock Action = "block"
)

// Detection records a matched rule.
type Detection struct {
	Field    string
	RuleName string
	Severity float64
	Category string
}

// Result is the outcome of screening one match.
type Result struct {
	Action     Action
	Message    string
	Detections []Detection
	Score      float64
}

// Screener scans match fields against a rule set.
type Screener struct {
	rules []Rule
	cfg   func() config.ScreeningConfig
}

// NewScreener creates a screener with the default rules. cfg is read on every
// call so thresholds follow config reloads.
func NewScreener(cfg func() config.ScreeningConfig) *Screener {
	return &Screener{rules: DefaultRules(), cfg: cfg}
}

// Scan checks a single text and returns all detections.
func (s *Screener) Scan(field, text string) []Detection {
	var detections []Detection
	for _, r := range s.rules {
		if r.Regex.MatchString(text) {
			detections = append(detections, Detection{
				Field:    field,
				RuleName: r.Name,
				Severity: r.Severity,
				Category: r.Category,
			})
		}
	}
	return detections
}

// Check screens every free-text field of a match. The score is the highest
// severity found.
func (s *Screener) Check(m types.MatchContext) Result {
	cfg := s.cfg()
	if !cfg.Enabled {
		return Result{Action: ActionPass}
	}

	fields := []struct{ name, value string }{
		{"match_id", m.MatchID},
		{"home_team", m.HomeTeam},
		{"away_team", m.AwayTeam},
		{"competition", m.Competition},
	}

	var (
		detections []Detection
		score      float64
		worst      Detection
	)
	for _, f := range fields {
		for _, d := range s.Scan(f.name, f.value) {
			detections = append(detections, d)
			if d.Severity > score {
				score = d.Severity
				worst = d
			}
		}
	}

	switch {
	case score >= cfg.BlockThreshold:
		return Result{
			Action:     ActionBlock,
			Message:    fmt.Sprintf("%s rejected: looks like a prompt instruction (%s)", worst.Field, worst.RuleName),
			Detections: detections,
			Score:      score,
		}
	case score >= cfg.FlagThreshold:
		return Result{Action: ActionFlag, Detections: detections, Score: score}
	default:
		return Result{Action: ActionPass, Score: score}
	}
}
