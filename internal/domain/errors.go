package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a session id or PIN does not resolve.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrParticipantNotFound is returned when a participant id does not resolve.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrBlockNotFound indicates the question block could not be loaded.
	ErrBlockNotFound = errors.New("question block not found")
	// ErrQuestionNotFound indicates a submitted question id is not part of the block.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrNicknameTaken is returned when the nickname is already used in the session.
	ErrNicknameTaken = errors.New("nickname already taken in this session")
	// ErrAnswerExists is returned on a second submission for the same question.
	ErrAnswerExists = errors.New("answer already submitted for this question")
	// ErrStaleSession is returned when the session changed since it was read.
	ErrStaleSession = errors.New("game session was modified concurrently")
	// ErrPinInUse is returned when an active session already holds the PIN.
	ErrPinInUse = errors.New("pin already used by an active session")
	// ErrPinExhausted is returned when no free PIN could be allocated.
	ErrPinExhausted = errors.New("could not allocate a unique pin")

	// ErrInvalidTransition marks a state machine call that is not valid from the current status.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionNotPlaying is returned when answers are submitted outside the playing phase.
	ErrSessionNotPlaying = errors.New("game session is not accepting answers")
	// ErrQuestionNotCurrent is returned when an answer targets a question that is not active.
	ErrQuestionNotCurrent = errors.New("question is not the current question")
	// ErrAnswerWindowClosed is returned when the countdown for the current question has run out.
	ErrAnswerWindowClosed = errors.New("time is up for this question")
	// ErrResultsNotReady is returned when results are requested before the game has finished.
	ErrResultsNotReady = errors.New("results are available once the game has finished")
	// ErrNoQuestions is returned when starting a session whose block is empty.
	ErrNoQuestions = errors.New("question block has no questions")
	// ErrNoParticipants is returned when starting a session nobody has joined.
	ErrNoParticipants = errors.New("no participants have joined")

	// ErrInvalidNickname is returned for empty or oversized nicknames.
	ErrInvalidNickname = errors.New("invalid nickname")
	// ErrInvalidOption is returned when the selected option is out of range.
	ErrInvalidOption = errors.New("selected option out of range")

	// ErrNotHost is returned when someone other than the owning teacher drives a session.
	ErrNotHost = errors.New("only the session host may do this")
	// ErrTeacherBlocked is returned for teachers blocked by an administrator.
	ErrTeacherBlocked = errors.New("teacher account is blocked")

	// ErrUnavailable wraps backend failures that are worth retrying.
	ErrUnavailable = errors.New("backend unavailable")
)

// TimeRemainingError asks the host to confirm an advance while the question is still open.
type TimeRemainingError struct {
	Remaining int
}

func (e *TimeRemainingError) Error() string {
	return fmt.Sprintf("question still has %ds remaining", e.Remaining)
}

// Kind is the error taxonomy surfaced to callers.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindTransient
	KindStateViolation
	KindInvalid
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindStateViolation:
		return "state_violation"
	case KindInvalid:
		return "invalid"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// KindOf classifies err. Unrecognized errors are KindUnknown.
func KindOf(err error) Kind {
	var remaining *TimeRemainingError
	switch {
	case err == nil:
		return KindUnknown
	case errors.As(err, &remaining):
		return KindConflict
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrBlockNotFound),
		errors.Is(err, ErrQuestionNotFound):
		return KindNotFound
	case errors.Is(err, ErrNicknameTaken),
		errors.Is(err, ErrAnswerExists),
		errors.Is(err, ErrStaleSession),
		errors.Is(err, ErrPinInUse),
		errors.Is(err, ErrPinExhausted):
		return KindConflict
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrSessionNotPlaying),
		errors.Is(err, ErrQuestionNotCurrent),
		errors.Is(err, ErrAnswerWindowClosed),
		errors.Is(err, ErrResultsNotReady),
		errors.Is(err, ErrNoQuestions),
		errors.Is(err, ErrNoParticipants):
		return KindStateViolation
	case errors.Is(err, ErrInvalidNickname),
		errors.Is(err, ErrInvalidOption):
		return KindInvalid
	case errors.Is(err, ErrNotHost),
		errors.Is(err, ErrTeacherBlocked):
		return KindForbidden
	case errors.Is(err, ErrUnavailable):
		return KindTransient
	default:
		return KindUnknown
	}
}
