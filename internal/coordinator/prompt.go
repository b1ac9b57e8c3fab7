package coordinator

import (
	"fmt"
	"strings"

	"github.com/af-corp/prediction-orchestrator/internal/types"
	"github.com/af-corp/prediction-orchestrator/internal/validate"
)

var systemPrompt = fmt.Sprintf(`You are a football analyst predicting the final score of upcoming matches.

Respond with JSON only, no prose and no markdown, in exactly this shape:
{"predictions": [{"match_id": "<id>", "home_score": <int>, "away_score": <int>}]}

Rules:
- Use the match_id exactly as given.
- Scores are whole numbers between 0 and %d.
- Return one entry per match.`, validate.MaxScore)

// SystemPrompt is the output contract shared by every model.
func SystemPrompt() string { return systemPrompt }

// UserPrompt describes the fixtures to predict.
func UserPrompt(matches ...types.MatchContext) string {
	var b strings.Builder
	b.WriteString("Predict the final score for the following match")
	if len(matches) > 1 {
		b.WriteString("es")
	}
	b.WriteString(".\n")

	for _, m := range matches {
		fmt.Fprintf(&b, "\nmatch_id: %s\n%s (home) vs %s (away)\n", m.MatchID, m.HomeTeam, m.AwayTeam)
		if m.Competition != "" {
			fmt.Fprintf(&b, "Competition: %s\n", m.Competition)
		}
		if !m.KickoffAt.IsZero() {
			fmt.Fprintf(&b, "Kickoff: %s\n", m.KickoffAt.UTC().Format("2006-01-02 15:04 MST"))
		}
	}
	return b.String()
}
