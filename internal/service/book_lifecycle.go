package service

import (
	"fmt"

	"github.com/noah-isme/library-catalog-api/internal/models"
	appErrors "github.com/noah-isme/library-catalog-api/pkg/errors"
)

// transition is one legal edge of the book lifecycle.
type transition struct {
	From models.BookStatus
	To   models.BookStatus
}

// planTransition returns the edge taken by action from status, or a conflict error.
func planTransition(status models.BookStatus, action models.BookAction) (transition, error) {
	var from models.BookStatus
	var to models.BookStatus
	switch action {
	case models.BookActionDelete:
		from, to = models.BookStatusActive, models.BookStatusDeleted
	case models.BookActionRestore:
		from, to = models.BookStatusDeleted, models.BookStatusActive
	case models.BookActionArchive:
		from, to = models.BookStatusDeleted, models.BookStatusArchived
	default:
		return transition{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", action))
	}
	if status != from {
		return transition{}, transitionConflict(status, action)
	}
	return transition{From: from, To: to}, nil
}

// expectedSource returns the status an action must start from.
func expectedSource(action models.BookAction) (models.BookStatus, error) {
	switch action {
	case models.BookActionDelete:
		return models.BookStatusActive, nil
	case models.BookActionRestore, models.BookActionArchive:
		return models.BookStatusDeleted, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown action %q", action))
	}
}

// ensureEditable rejects field or category changes outside the active state.
func ensureEditable(status models.BookStatus, operation string) error {
	if status == models.BookStatusActive {
		return nil
	}
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot %s book in status %s", operation, status))
}

func transitionConflict(status models.BookStatus, action models.BookAction) *appErrors.Error {
	switch status {
	case models.BookStatusArchived:
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot %s book: book is archived", action))
	case models.BookStatusActive, models.BookStatusDeleted:
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot %s book in status %s", action, status))
	default:
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("cannot %s book in unknown status %q", action, status))
	}
}
