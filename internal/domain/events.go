package domain

import (
	"encoding/json"
	"time"
)

// Table names a row set that emits change events.
type Table string

const (
	TableSessions     Table = "game_sessions"
	TableParticipants Table = "participants"
	TableAnswers      Table = "answers"
)

// ChangeType is the kind of row change.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
)

// Topic selects the change events of one table for one session.
type Topic struct {
	Table     Table
	SessionID string
}

// ChangeEvent is an advisory row-change notification. Receivers treat it as a
// trigger to re-read authoritative state rather than as the state itself.
type ChangeEvent struct {
	ID        string          `json:"id"`
	Table     Table           `json:"table"`
	Type      ChangeType      `json:"type"`
	SessionID string          `json:"sessionId"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	At        time.Time       `json:"at"`
}

// Topic returns the topic the event is published on.
func (e ChangeEvent) Topic() Topic {
	return Topic{Table: e.Table, SessionID: e.SessionID}
}
