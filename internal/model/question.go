package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Question represents a single multiple-choice question with its key.
// The CorrectIndex never leaves the server boundary before scoring.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	AssessmentID uuid.UUID       `json:"assessment_id"`
	Stem         string          `json:"stem"`
	Options      json.RawMessage `json:"options"`
	CorrectIndex int             `json:"correct_index"`
	OrderNum     int             `json:"order_num"`
}

// QuestionForCandidate is a question without the correct index, sent to candidates.
type QuestionForCandidate struct {
	ID       uuid.UUID       `json:"id"`
	Stem     string          `json:"stem"`
	Options  json.RawMessage `json:"options"`
	OrderNum int             `json:"order_num"`
}

// AssessmentPaper is the cached candidate-facing payload (no correct answers).
type AssessmentPaper struct {
	AssessmentID     uuid.UUID              `json:"assessment_id"`
	Title            string                 `json:"title"`
	TimeLimitMinutes int                    `json:"time_limit_minutes"`
	Questions        []QuestionForCandidate `json:"questions"`
}

// AnswerKey maps a question ID to its correct option index.
type AnswerKey map[uuid.UUID]int
