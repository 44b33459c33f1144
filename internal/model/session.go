package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates attempt states. COMPLETED and TIMED_OUT are
// terminal: no answer or status write is accepted afterwards.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusTimedOut   SessionStatus = "TIMED_OUT"
)

// Terminal reports whether the status accepts no further writes.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusTimedOut
}

// CompletionReason distinguishes a manual finish from deadline expiry.
type CompletionReason string

const (
	ReasonManual  CompletionReason = "manual"
	ReasonExpired CompletionReason = "expired"
)

// FocusEventType tags entries in the violation log.
type FocusEventType string

const (
	FocusEventTabHidden FocusEventType = "tab_hidden"
)

// FocusEvent is one recorded focus-loss violation. Advisory only.
type FocusEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      FocusEventType `json:"type"`
}

// Session represents one attempt at an assessment. At most one
// IN_PROGRESS session exists per (user, assessment); the storage layer
// enforces this with a partial unique index.
type Session struct {
	ID             uuid.UUID     `json:"id"`
	AssessmentID   uuid.UUID     `json:"assessment_id"`
	UserID         int           `json:"user_id"`
	Status         SessionStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	QuestionOrder  []uuid.UUID   `json:"question_order"`
	TabSwitchCount int           `json:"tab_switch_count"`
	TabSwitchLog   []FocusEvent  `json:"tab_switch_log,omitempty"`
	Score          *int          `json:"score,omitempty"`
	Passed         *bool         `json:"passed,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

// SubmitAnswerRequest is the payload for saving one answer.
type SubmitAnswerRequest struct {
	QuestionID    uuid.UUID `json:"question_id" binding:"required"`
	SelectedIndex int       `json:"selected_index" binding:"min=0,max=15"`
	// RemainingSeconds is the client countdown value at submit time.
	// Telemetry only — never feeds the authoritative deadline.
	RemainingSeconds *int `json:"remaining_seconds" binding:"omitempty,min=0"`
}

// CompleteRequest is the payload for finishing an attempt.
type CompleteRequest struct {
	Reason CompletionReason `json:"reason" binding:"required,oneof=manual expired"`
}
