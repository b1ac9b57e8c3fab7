package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/af-corp/prediction-orchestrator/internal/types"
)

type matchInput struct {
	MatchID  string `json:"match_id" validate:"required,max=128"`
	HomeTeam string `json:"home_team" validate:"required,max=128"`
	AwayTeam string `json:"away_team" validate:"required,max=128,nefield=HomeTeam"`
}

// Match checks an inbound match request. It returns a single error listing every
// problem, or nil.
func Match(m types.MatchContext) error {
	in := matchInput{
		MatchID:  strings.TrimSpace(m.MatchID),
		HomeTeam: strings.TrimSpace(m.HomeTeam),
		AwayTeam: strings.TrimSpace(m.AwayTeam),
	}
	err := getValidator().Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" characters")
		case "nefield":
			msgs = append(msgs, "home_team and away_team must differ")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
