package domain

import "errors"

var (
	ErrInvalidState          = errors.New("invalid_state")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrMissingRequiredChoice = errors.New("missing_required_choice")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrNotFound              = errors.New("not_found")
	ErrSyncFailure           = errors.New("sync_failure")
	ErrInvalidInput          = errors.New("invalid_input")
	ErrOutsideVenue          = errors.New("outside_venue")
)

// Kind returns the sentinel err wraps, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidState, ErrUnauthorized, ErrMissingRequiredChoice,
		ErrInvalidTransition, ErrNotFound, ErrSyncFailure, ErrInvalidInput, ErrOutsideVenue,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
