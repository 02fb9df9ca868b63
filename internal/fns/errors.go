package fns

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned for HTTP 403. It is fatal for a run: every
	// following request would be rejected too.
	ErrUnauthorized = errors.New("fns: unauthorized")

	// ErrPending is returned for HTTP 202: the receipt is known but not ready
	// yet and should be requested again after a delay.
	ErrPending = errors.New("fns: receipt is pending")
)

// Step identifies which of the two API calls produced a status.
type Step string

const (
	StepCheck   Step = "check"
	StepDetails Step = "details"
)

// StatusError reports an unexpected HTTP status.
type StatusError struct {
	Step Step
	Code int
}

func (e *StatusError) Error() string {
	if e.Step == StepCheck {
		return fmt.Sprintf("fns: receipt was not found [%d]", e.Code)
	}
	return fmt.Sprintf("fns: receipt %s failed [%d]", e.Step, e.Code)
}
