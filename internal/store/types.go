package store

import "time"

// SessionStatus values follow the engine state machine:
// active -> escalated, active -> ended, escalated -> ended.
const (
	StatusActive    = "active"
	StatusEscalated = "escalated"
	StatusEnded     = "ended"
)

type SessionRecord struct {
	SessionID       string
	Caller          string
	Channel         string
	BankID          string
	CurrentAgent    string
	Status          string
	Escalated       bool
	Consent         bool
	StartedAt       time.Time
	EndedAt         *time.Time
	DurationSeconds int64
	EndReason       string
}

type TurnRecord struct {
	SessionID  string
	TurnNumber int
	Role       string
	Content    string
	AgentName  string
	Metadata   map[string]string
	CreatedAt  time.Time
}

type EventRecord struct {
	ID         string
	SessionID  string
	TurnNumber int
	Type       string
	Details    map[string]string
	CreatedAt  time.Time
}

type DailyMetricRecord struct {
	Date               string // YYYY-MM-DD
	SessionsEnded      int
	Escalations        int
	AvgDurationSeconds float64
	AgentCounts        map[string]int
	ComputedAt         time.Time
}

// SessionUpdate is the post-turn mutation applied to a session row. It is
// staged alongside the turn's audit records and applied second, so a crash
// between the two writes is detectable and recoverable.
type SessionUpdate struct {
	CurrentAgent    string     `json:"current_agent"`
	Status          string     `json:"status"`
	Escalated       bool       `json:"escalated"`
	Consent         bool       `json:"consent"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds int64      `json:"duration_seconds,omitempty"`
	EndReason       string     `json:"end_reason,omitempty"`
}

// TurnCommit is the unit of work for one processed turn: the caller and agent
// turn rows, any compliance events they triggered, and the session update.
type TurnCommit struct {
	SessionID string
	Turns     []TurnRecord
	Events    []EventRecord
	Update    *SessionUpdate
}
