// Package predictor classifies food images and attaches a calorie estimate.
//
// Several backends implement Predictor; exactly one is selected at startup.
// Predictors never return errors: a failed or unconfident prediction is a
// Result whose Fields are all absent, with Outcome and Err kept for logging.
package predictor

import (
	"context"
	"errors"
)

var ErrUnknownBackend = errors.New("unknown predictor backend")

type Outcome int

const (
	OutcomeConfident Outcome = iota
	OutcomeLowConfidence
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfident:
		return "confident"
	case OutcomeLowConfidence:
		return "low_confidence"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Predictor interface {
	Name() string
	Predict(ctx context.Context, imagePath string) Result
}

type Result struct {
	Label      string
	Calories   *float64
	Confidence float64
	Outcome    Outcome
	Err        error
}

// Fields returns the externally visible prediction. Everything is nil
// unless the outcome is OutcomeConfident.
func (r Result) Fields() (label *string, calories *float64, confidence *float64) {
	if r.Outcome != OutcomeConfident {
		return nil, nil, nil
	}

	l := r.Label
	c := r.Confidence
	return &l, r.Calories, &c
}

func confident(label string, calories *float64, confidence float64) Result {
	return Result{Label: label, Calories: calories, Confidence: confidence, Outcome: OutcomeConfident}
}

func lowConfidence(label string, confidence float64) Result {
	return Result{Label: label, Confidence: confidence, Outcome: OutcomeLowConfidence}
}

func failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}
