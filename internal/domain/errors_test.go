package domain

import (
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrSessionNotFound, KindNotFound},
		{fmt.Errorf("load: %w", ErrParticipantNotFound), KindNotFound},
		{ErrNicknameTaken, KindConflict},
		{ErrAnswerExists, KindConflict},
		{ErrStaleSession, KindConflict},
		{&TimeRemainingError{Remaining: 4}, KindConflict},
		{ErrInvalidTransition, KindStateViolation},
		{ErrSessionNotPlaying, KindStateViolation},
		{ErrAnswerWindowClosed, KindStateViolation},
		{ErrResultsNotReady, KindStateViolation},
		{ErrQuestionNotFound, KindNotFound},
		{ErrInvalidOption, KindInvalid},
		{ErrNotHost, KindForbidden},
		{fmt.Errorf("redis: %w", ErrUnavailable), KindTransient},
		{fmt.Errorf("load session: %w: %w", ErrUnavailable, fmt.Errorf("dial tcp: refused")), KindTransient},
		{fmt.Errorf("boom"), KindUnknown},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.want {
			t.Errorf("KindOf(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
