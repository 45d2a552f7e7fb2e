package form

import (
	"errors"
	"fmt"

	"github.com/lms-discussions-api/internal/models"
	"github.com/lms-discussions-api/internal/validation"
)

var ErrStepOutOfRange = errors.New("form: step out of range")

// StepStatus summarizes one wizard step for the progress indicator
type StepStatus string

const (
	StepIncomplete StepStatus = "incomplete"
	StepValid      StepStatus = "valid"
	StepInvalid    StepStatus = "invalid"
)

// Result is the outcome of validating one step
type Result struct {
	Valid  bool                    `json:"valid"`
	Errors []models.FormFieldError `json:"errors"`
}

// Wizard validates a multi-step form one step at a time
type Wizard struct {
	steps []*validation.RuleSet
	env   validation.Env
}

// NewWizard creates a wizard over the given step rule sets
func NewWizard(env validation.Env, steps ...*validation.RuleSet) *Wizard {
	return &Wizard{steps: steps, env: env}
}

// Len returns the number of steps
func (w *Wizard) Len() int { return len(w.steps) }

func (w *Wizard) step(i int) (*validation.RuleSet, error) {
	if i < 0 || i >= len(w.steps) {
		return nil, fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, i, len(w.steps))
	}
	return w.steps[i], nil
}

// ValidateStep runs the rules of step i against values
func (w *Wizard) ValidateStep(i int, values validation.Values) (Result, error) {
	rs, err := w.step(i)
	if err != nil {
		return Result{}, err
	}
	errs := rs.Validate(values, w.env)
	return Result{Valid: len(errs) == 0, Errors: errs}, nil
}

// StepStatus is invalid when any entered value breaks a rule, incomplete
// when only required values are missing, and valid otherwise. A step without
// required fields is valid even when empty.
func (w *Wizard) StepStatus(i int, values validation.Values) (StepStatus, error) {
	res, err := w.ValidateStep(i, values)
	if err != nil {
		return "", err
	}
	missing := false
	for _, e := range res.Errors {
		if e.Code != validation.CodeRequired {
			return StepInvalid, nil
		}
		missing = true
	}
	if missing {
		return StepIncomplete, nil
	}
	return StepValid, nil
}

// FirstUnfinished returns the first step that is not valid, or Len when all are
func (w *Wizard) FirstUnfinished(values validation.Values) int {
	for i := range w.steps {
		if st, _ := w.StepStatus(i, values); st != StepValid {
			return i
		}
	}
	return len(w.steps)
}
