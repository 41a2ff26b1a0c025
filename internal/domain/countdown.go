package domain

import "time"

// RemainingSeconds derives the countdown for a question from its start anchor.
// It is always recomputed from startedAt, never decremented, so a reload or a
// late subscriber sees the same value as everyone else at the same instant.
func RemainingSeconds(startedAt time.Time, timeSeconds int, now time.Time) int {
	elapsedMs := now.Sub(startedAt).Milliseconds()
	// floor division; a clock slightly behind the anchor counts as zero elapsed
	elapsed := int(elapsedMs / 1000)
	if elapsedMs < 0 {
		elapsed = 0
	}
	remaining := timeSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SessionRemaining returns the countdown for the session's active question, or
// zero when no question is exposed.
func SessionRemaining(s GameSession, q *Question, now time.Time) int {
	if s.Status != StatusPlaying || s.QuestionStartedAt == nil || q == nil {
		return 0
	}
	return RemainingSeconds(*s.QuestionStartedAt, q.TimeSeconds, now)
}
