package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the lifecycle states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusArchived  AssessmentStatus = "ARCHIVED"
)

// Assessment represents a published question deck configuration.
// It is owned by the content-management side and read-only to the
// session engine; none of its fields change while attempts are running.
type Assessment struct {
	ID               uuid.UUID        `json:"id"`
	OrgID            int              `json:"org_id"`
	Title            string           `json:"title"`
	QuestionCount    int              `json:"question_count"`
	TimeLimitMinutes int              `json:"time_limit_minutes"`
	PassScore        int              `json:"pass_score"`
	Status           AssessmentStatus `json:"status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TimeLimit returns the attempt duration as a time.Duration.
func (a *Assessment) TimeLimit() time.Duration {
	return time.Duration(a.TimeLimitMinutes) * time.Minute
}
