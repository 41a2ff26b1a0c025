package domain

import "time"

// SessionStatus is the lifecycle stage of a game session.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusPlaying  SessionStatus = "playing"
	StatusFinished SessionStatus = "finished"
)

// Rank orders statuses along the only permitted direction of travel.
func (s SessionStatus) Rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusPlaying:
		return 1
	case StatusFinished:
		return 2
	default:
		return -1
	}
}

// Active reports whether the session still holds its PIN.
func (s SessionStatus) Active() bool {
	return s == StatusWaiting || s == StatusPlaying
}

// GameSession is the single authoritative record for one live or finished game.
// Only the host writes it; every write is a compare-and-set on Version.
type GameSession struct {
	ID                   string        `json:"id"`
	TeacherID            string        `json:"teacherId"`
	PinCode              string        `json:"pinCode"`
	BlockID              string        `json:"blockId"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	QuestionStartedAt    *time.Time    `json:"questionStartedAt,omitempty"`
	StartedAt            *time.Time    `json:"startedAt,omitempty"`
	EndedAt              *time.Time    `json:"endedAt,omitempty"`
	CreatedAt            time.Time     `json:"createdAt"`
	Version              int64         `json:"version"`
}

// Participant is one student's membership and score within a session.
type Participant struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Nickname   string    `json:"nickname"`
	TotalScore int       `json:"totalScore"`
	JoinedAt   time.Time `json:"joinedAt"`
}

// Question is immutable once a game over its block has started.
type Question struct {
	ID            string   `json:"id"`
	BlockID       string   `json:"blockId"`
	OrderIndex    int      `json:"orderIndex"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	TimeSeconds   int      `json:"timeSeconds"`
	MaxPoints     int      `json:"maxPoints"`
}

// Public strips the correct option so the question can be shown during play.
func (q Question) Public() QuestionView {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return QuestionView{
		ID:          q.ID,
		OrderIndex:  q.OrderIndex,
		Text:        q.Text,
		Options:     options,
		TimeSeconds: q.TimeSeconds,
		MaxPoints:   q.MaxPoints,
	}
}

// QuestionView is what players see of the active question.
type QuestionView struct {
	ID          string   `json:"id"`
	OrderIndex  int      `json:"orderIndex"`
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	TimeSeconds int      `json:"timeSeconds"`
	MaxPoints   int      `json:"maxPoints"`
}

// Answer is unique per (ParticipantID, QuestionID).
type Answer struct {
	ID             string    `json:"id"`
	ParticipantID  string    `json:"participantId"`
	QuestionID     string    `json:"questionId"`
	SelectedOption int       `json:"selectedOption"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	IsCorrect      bool      `json:"isCorrect"`
	PointsEarned   int       `json:"pointsEarned"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// AnswerReview is one answered question in a participant's final results. The
// correct option is only revealed here, after the game has finished.
type AnswerReview struct {
	QuestionID     string   `json:"questionId"`
	OrderIndex     int      `json:"orderIndex"`
	Text           string   `json:"text"`
	Options        []string `json:"options"`
	SelectedOption int      `json:"selectedOption"`
	CorrectOption  int      `json:"correctOption"`
	IsCorrect      bool     `json:"isCorrect"`
	PointsEarned   int      `json:"pointsEarned"`
	ResponseTimeMs int64    `json:"responseTimeMs"`
}

// Results is a participant's breakdown of a finished game.
type Results struct {
	Participant   Participant        `json:"participant"`
	Rank          int                `json:"rank"`
	QuestionCount int                `json:"questionCount"`
	Answers       []AnswerReview     `json:"answers"`
	Leaderboard   []LeaderboardEntry `json:"leaderboard"`
}

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	QuestionID   string `json:"questionId"`
	IsCorrect    bool   `json:"isCorrect"`
	PointsEarned int    `json:"pointsEarned"`
	TotalScore   int    `json:"totalScore"`
}

// LeaderboardEntry is a ranked view of a participant.
type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participantId"`
	Nickname      string `json:"nickname"`
	TotalScore    int    `json:"totalScore"`
}

// Snapshot is everything a participant needs to rebuild its view after a reload.
type Snapshot struct {
	Participant      Participant   `json:"participant"`
	Session          GameSession   `json:"session"`
	CurrentQuestion  *QuestionView `json:"currentQuestion,omitempty"`
	QuestionCount    int           `json:"questionCount"`
	RemainingSeconds int           `json:"remainingSeconds"`
	// AcceptingAnswers is false once the countdown for the current question hits zero.
	AcceptingAnswers bool      `json:"acceptingAnswers"`
	Rank             int       `json:"rank"`
	ObservedAt       time.Time `json:"observedAt"`
}
