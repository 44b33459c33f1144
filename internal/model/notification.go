package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind enumerates in-app notification types.
type NotificationKind string

const (
	NotificationResultReady NotificationKind = "RESULT_READY"
)

// Notification is an in-app message delivered to a user after an event
// such as attempt completion. Delivery is fire-and-forget: a failed
// dispatch never fails the operation that produced it.
type Notification struct {
	ID           int              `json:"id"`
	UserID       int              `json:"user_id"`
	AssessmentID uuid.UUID        `json:"assessment_id"`
	Kind         NotificationKind `json:"kind"`
	Score        int              `json:"score"`
	Passed       bool             `json:"passed"`
	CreatedAt    time.Time        `json:"created_at"`
}
