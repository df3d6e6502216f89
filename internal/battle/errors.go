package battle

import (
	"errors"
	"fmt"
)

// Service errors. Handlers map the root kinds to HTTP statuses; the wrapped variants only
// refine the message.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid room state")
	ErrFull           = errors.New("room is full")
	ErrNotParticipant = errors.New("not a participant in this room")
	ErrConflict       = errors.New("conflict")
	ErrValidation     = errors.New("invalid request")
	ErrUpstream       = errors.New("upstream failure")
	ErrInternal       = errors.New("internal error")

	ErrAlreadyJoined     = fmt.Errorf("%w: already joined this room", ErrConflict)
	ErrAlreadySubmitted  = fmt.Errorf("%w: prompt already submitted", ErrConflict)
	ErrAlreadyJudged     = fmt.Errorf("%w: room already judged", ErrConflict)
	ErrJudgingInProgress = fmt.Errorf("%w: judging already in progress", ErrConflict)
	ErrHostJoinFailed    = fmt.Errorf("%w: could not add host to room", ErrConflict)

	// ErrSubmissionsChanged means a prompt arrived during judging; judging again will include it.
	ErrSubmissionsChanged = fmt.Errorf("%w: prompts changed while judging, retry", ErrConflict)

	ErrNoParticipants = fmt.Errorf("%w: room has no participants", ErrInvalidState)
	ErrNoSubmissions  = fmt.Errorf("%w: no prompts have been submitted", ErrInvalidState)

	ErrJudgeResponse = fmt.Errorf("%w: judge returned an invalid response", ErrUpstream)
)

func internalErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInternal, op, err)
}

var kinds = []error{
	ErrUnauthorized, ErrNotFound, ErrFull, ErrNotParticipant, ErrConflict,
	ErrInvalidState, ErrValidation, ErrUpstream, ErrInternal,
}

// Kind returns the root service error err belongs to, or ErrInternal for foreign errors.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}
