package validate

import (
	"strings"
	"testing"

	"github.com/af-corp/prediction-orchestrator/internal/types"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		match   types.MatchContext
		wantErr string
	}{
		{"ok", types.MatchContext{MatchID: "m1", HomeTeam: "Arsenal", AwayTeam: "Chelsea"}, ""},
		{"missing id", types.MatchContext{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}, "match_id is required"},
		{"blank team", types.MatchContext{MatchID: "m1", HomeTeam: "  ", AwayTeam: "Chelsea"}, "home_team is required"},
		{"same teams", types.MatchContext{MatchID: "m1", HomeTeam: "Arsenal", AwayTeam: "Arsenal"}, "must differ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Match(tt.match)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
