// Package validate is the last check a prediction passes before it is persisted.
// It rejects rather than coerces: out-of-range or fractional scores are errors,
// never clamped or rounded.
package validate

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/af-corp/prediction-orchestrator/internal/failure"
	"github.com/af-corp/prediction-orchestrator/internal/types"
)

// MaxScore is the highest score a single team may be predicted to reach.
const MaxScore = 20

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// scoreInput mirrors types.Candidate with validation rules attached.
type scoreInput struct {
	MatchID   string   `json:"match_id" validate:"required"`
	HomeScore *float64 `json:"home_score" validate:"required,min=0,max=20,integral"`
	AwayScore *float64 `json:"away_score" validate:"required,min=0,max=20,integral"`
}

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		err := validate.RegisterValidation("integral", func(fl validator.FieldLevel) bool {
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
		})
		if err != nil {
			panic(fmt.Sprintf("validate: registering integral rule: %v", err))
		}
	})
	return validate
}

// Validate checks a candidate against the prediction contract and the set of match
// ids the batch asked about. It is a pure function of its inputs.
func Validate(c types.Candidate, expectedMatchIDs []string) (types.Prediction, error) {
	in := scoreInput{
		MatchID:   strings.TrimSpace(c.MatchID),
		HomeScore: c.HomeScore,
		AwayScore: c.AwayScore,
	}

	var issues []string
	if err := getValidator().Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return types.Prediction{}, &failure.SchemaError{Issues: []string{err.Error()}}
		}
		for _, fe := range fieldErrs {
			issues = append(issues, translate(fe))
		}
	}

	if in.MatchID != "" && !contains(expectedMatchIDs, in.MatchID) {
		issues = append(issues, fmt.Sprintf("match_id %q is not one of the requested matches", in.MatchID))
	}

	if len(issues) > 0 {
		return types.Prediction{}, &failure.SchemaError{Issues: issues}
	}

	return types.Prediction{
		MatchID:   in.MatchID,
		HomeScore: int(*in.HomeScore),
		AwayScore: int(*in.AwayScore),
	}, nil
}

func translate(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), deref(fe.Value()))
	case "max":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), deref(fe.Value()))
	case "integral":
		return fmt.Sprintf("%s must be a whole number, got %v", field, deref(fe.Value()))
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func deref(v any) any {
	if p, ok := v.(*float64); ok && p != nil {
		return *p
	}
	return v
}

func contains(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// ValidateAll validates every candidate of a multi-match response. Invalid
// candidates are dropped and their errors returned; for a repeated match id the
// first valid candidate wins.
func ValidateAll(cands []types.Candidate, expectedMatchIDs []string) ([]types.Prediction, []error) {
	var (
		preds []types.Prediction
		errs  []error
		seen  = make(map[string]bool, len(cands))
	)
	for _, c := range cands {
		p, err := Validate(c, expectedMatchIDs)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[p.MatchID] {
			continue
		}
		seen[p.MatchID] = true
		preds = append(preds, p)
	}
	return preds, errs
}

// Merge folds several schema errors into one.
func Merge(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var issues []string
	for _, err := range errs {
		var se *failure.SchemaError
		if errors.As(err, &se) {
			issues = append(issues, se.Issues...)
			continue
		}
		issues = append(issues, err.Error())
	}
	return &failure.SchemaError{Issues: issues}
}
