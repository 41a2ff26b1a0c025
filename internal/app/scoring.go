package app

import (
	"math"

	"classroom-quiz-service/internal/domain"
)

// Scorer decides correctness and points for one submission.
type Scorer interface {
	Score(q domain.Question, selectedOption int, responseTimeMs int64) (correct bool, points int)
}

// DecayScorer awards maxPoints for an instant correct answer, decaying linearly
// with latency down to Floor*maxPoints at the end of the time budget. Wrong
// answers earn nothing.
type DecayScorer struct {
	Floor float64
}

// NewDecayScorer returns the default scorer with a 50% floor.
func NewDecayScorer() DecayScorer {
	return DecayScorer{Floor: 0.5}
}

func (s DecayScorer) Score(q domain.Question, selectedOption int, responseTimeMs int64) (bool, int) {
	if selectedOption != q.CorrectOption {
		return false, 0
	}
	budgetMs := float64(q.TimeSeconds) * 1000
	factor := 1.0
	if budgetMs > 0 {
		factor = 1 - float64(responseTimeMs)/budgetMs
	}
	factor = math.Max(s.Floor, math.Min(1, factor))
	return true, int(math.Round(float64(q.MaxPoints) * factor))
}
