package app

import (
	"time"

	"classroom-quiz-service/internal/domain"
)

// The transitions below are pure: they take a snapshot of the session and
// return the next one. Persisting the result is the caller's job.

func startSession(s domain.GameSession, questionCount, participantCount int, now time.Time) (domain.GameSession, error) {
	if s.Status != domain.StatusWaiting {
		return s, domain.ErrInvalidTransition
	}
	if questionCount == 0 {
		return s, domain.ErrNoQuestions
	}
	if participantCount == 0 {
		return s, domain.ErrNoParticipants
	}
	at := now
	s.Status = domain.StatusPlaying
	s.CurrentQuestionIndex = 0
	s.StartedAt = &at
	s.QuestionStartedAt = &at
	return s, nil
}

// advanceSession moves to the next question, or finishes after the last one.
func advanceSession(s domain.GameSession, questionCount int, now time.Time) (domain.GameSession, error) {
	if s.Status != domain.StatusPlaying {
		return s, domain.ErrInvalidTransition
	}
	if s.CurrentQuestionIndex+1 >= questionCount {
		return finishSession(s, now)
	}
	at := now
	s.CurrentQuestionIndex++
	s.QuestionStartedAt = &at
	return s, nil
}

// finishSession is valid from waiting (abort) and playing.
func finishSession(s domain.GameSession, now time.Time) (domain.GameSession, error) {
	if s.Status == domain.StatusFinished {
		return s, domain.ErrInvalidTransition
	}
	at := now
	s.Status = domain.StatusFinished
	s.EndedAt = &at
	s.QuestionStartedAt = nil
	return s, nil
}
