package ui

import (
	"github.com/agenthubhq/agenthub-cli/internal/execution"
)

// ReviewBadge renders a short styled label for a review status, for
// execution listings and poll progress lines.
func (s *Styles) ReviewBadge(status execution.ReviewStatus) string {
	switch status {
	case execution.ReviewNone:
		return s.Muted.Render("-")
	case execution.ReviewPending:
		return s.Warning.Render(PendingIcon + " pending")
	case execution.ReviewInProgress:
		return s.Warning.Render(PendingIcon + " in progress")
	case execution.ReviewCompleted:
		return s.Success.Render(SuccessIcon + " completed")
	case execution.ReviewRejected:
		return s.Error.Render(FailIcon + " rejected")
	case execution.ReviewUnknown:
		return s.Muted.Render("? unknown")
	default:
		return s.Muted.Render(string(status))
	}
}
