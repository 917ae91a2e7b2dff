package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the scan taxonomy. Use errors.Is against these.
var (
	// ErrMissingCredential marks a ConfigurationError.
	ErrMissingCredential = errors.New("missing credential")

	// ErrSubmission marks any SubmissionError.
	ErrSubmission = errors.New("submission rejected")

	// ErrRateLimited marks a SubmissionError caused by upstream throttling.
	ErrRateLimited = errors.New("rate limited")

	// ErrScanTimeout means the analysis never reached a terminal state
	// within the attempt budget.
	ErrScanTimeout = errors.New("scan timed out")

	// ErrInvalidURL means the submitted link could not be parsed.
	ErrInvalidURL = errors.New("invalid url")
)

// ConfigurationError reports credentials that are required but not set.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: missing %s", strings.Join(e.Missing, ", "))
}

func (e *ConfigurationError) Unwrap() error { return ErrMissingCredential }

type SubmissionReason string

const (
	SubmissionRateLimited SubmissionReason = "rate_limited"
	SubmissionUnexpected  SubmissionReason = "unexpected"
)

// SubmissionError is returned when an upstream rejected a request outright.
type SubmissionError struct {
	Service    string
	Reason     SubmissionReason
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("%s submission %s", e.Service, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrSubmission for every reason and ErrRateLimited
// for throttled submissions.
func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrSubmission:
		return true
	case ErrRateLimited:
		return e.Reason == SubmissionRateLimited
	}
	return false
}

func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

func IsScanTimeout(err error) bool { return errors.Is(err, ErrScanTimeout) }

func IsConfiguration(err error) bool { return errors.Is(err, ErrMissingCredential) }
