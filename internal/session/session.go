package session

import (
	"github.com/tellerline/tellerline/internal/store"

	tlerrors "github.com/tellerline/tellerline/internal/errors"
)

// ValidateTransition enforces the session status machine:
// active -> escalated, active -> ended, escalated -> ended. Re-asserting the
// current status is a no-op; anything out of an ended session fails.
func ValidateTransition(from, to string) error {
	if from == to {
		return nil
	}
	switch from {
	case store.StatusActive:
		if to == store.StatusEscalated || to == store.StatusEnded {
			return nil
		}
	case store.StatusEscalated:
		if to == store.StatusEnded {
			return nil
		}
	case store.StatusEnded:
		return tlerrors.ErrSessionEnded
	}
	return tlerrors.InvalidTransition(from, to)
}
