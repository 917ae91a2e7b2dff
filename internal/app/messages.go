package app

import (
	"context"
	"errors"

	"github.com/raysh454/linkguard/internal/model"
)

const (
	MsgInvalidURL    = "Please enter a valid link."
	MsgNotConfigured = "Scanning is unavailable: the service is missing API credentials."
	MsgRateLimited   = "The scanning service is busy. Please try again in a minute."
	MsgRejected      = "The scanning service could not accept this link. Please try again later."
	MsgTimeout       = "The scan was inconclusive because it timed out. Please retry."
	MsgCanceled      = "The scan was canceled."
	MsgUnexpected    = "Something went wrong while scanning. Please try again."
)

// UserMessage maps a scan failure to a short message that is safe to show.
// Upstream error text never passes through.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidURL):
		return MsgInvalidURL
	case model.IsConfiguration(err):
		return MsgNotConfigured
	case model.IsRateLimited(err):
		return MsgRateLimited
	case errors.Is(err, model.ErrSubmission):
		return MsgRejected
	case model.IsScanTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return MsgTimeout
	case errors.Is(err, context.Canceled):
		return MsgCanceled
	default:
		return MsgUnexpected
	}
}
