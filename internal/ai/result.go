package ai

import (
	"errors"
	"fmt"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
)

// Outcome tags a ClassificationResult.
type Outcome int

const (
	// OutcomeOK carries a validated AnimalReport.
	OutcomeOK Outcome = iota
	// OutcomeMalformed means the provider answered but the answer is unusable.
	OutcomeMalformed
	// OutcomeUnavailable means the provider could not be reached or failed.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ClassificationResult is what a classifier returns. Only OutcomeOK carries a Report.
type ClassificationResult struct {
	Outcome  Outcome
	Provider string
	Report   *models.AnimalReport
	// Raw is the provider output for malformed results.
	Raw   string
	Cause error
	// Demo marks canned content from the demo provider.
	Demo bool
}

func OK(provider string, report models.AnimalReport) ClassificationResult {
	return ClassificationResult{Outcome: OutcomeOK, Provider: provider, Report: &report}
}

func Malformed(provider, raw string, cause error) ClassificationResult {
	if cause == nil {
		cause = errors.New("malformed response")
	}
	return ClassificationResult{Outcome: OutcomeMalformed, Provider: provider, Raw: raw, Cause: cause}
}

func Unavailable(provider string, cause error) ClassificationResult {
	return ClassificationResult{Outcome: OutcomeUnavailable, Provider: provider, Cause: cause}
}

// Err returns nil for OutcomeOK and an *apperr.ProviderError otherwise.
func (r ClassificationResult) Err() error {
	if r.Outcome == OutcomeOK && r.Report != nil {
		return nil
	}
	cause := r.Cause
	if cause == nil {
		cause = errors.New(r.Outcome.String())
	}
	return apperr.Provider(r.Provider, fmt.Errorf("%s: %w", r.Outcome, cause))
}
