package model

import (
	"time"

	"github.com/google/uuid"
)

// Answer is one submitted choice, keyed by (session, question). Later
// submissions overwrite the row; unanswered questions have no row and
// score as incorrect. IsCorrect stays null until the attempt is scored.
type Answer struct {
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	SelectedIndex int       `json:"selected_index"`
	IsCorrect     *bool     `json:"is_correct,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
