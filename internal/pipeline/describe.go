// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"errors"

	"github.com/pdiddy/validation-engine/internal/failure"
)

// Severity grades a user-facing message.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Notice is the user-facing rendering of a transition error.
type Notice struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Describe turns a transition error into a message for the user. An empty
// mining result is a warning; everything else is an error. A nil error
// yields the zero Notice.
func Describe(err error) Notice {
	if err == nil {
		return Notice{}
	}

	switch {
	case errors.Is(err, ErrEmptyMarket):
		return Notice{SeverityError, "Enter a core market to analyze."}
	case errors.Is(err, ErrNotACandidate):
		return Notice{SeverityError, "Choose one of the listed options: " + err.Error()}
	case errors.Is(err, ErrNoSnippets):
		return Notice{SeverityError, "Mine discussion text before running the analysis."}
	case errors.Is(err, ErrWrongPhase), errors.Is(err, ErrUnknownAction):
		return Notice{SeverityError, err.Error()}
	}

	var fe *failure.Error
	if !errors.As(err, &fe) {
		return Notice{SeverityError, err.Error()}
	}

	switch fe.Kind {
	case failure.KindConfigMissing:
		return Notice{SeverityError, "Missing credential: " + fe.Err.Error() + "."}
	case failure.KindEmptyResult:
		if fe.Op == opMine {
			return Notice{SeverityWarning, "No relevant snippets found. Try mining again."}
		}
		return Notice{SeverityError, "The model returned no usable items. Try again."}
	case failure.KindParse:
		return Notice{SeverityError, "The model's answer could not be read as a list. Try again."}
	case failure.KindUpstream:
		return Notice{SeverityError, "An external service failed: " + err.Error()}
	default:
		return Notice{SeverityError, err.Error()}
	}
}
