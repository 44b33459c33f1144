package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserLoginSessionKey returns the cache key for a user's login session.
func (r *CacheKeyStruct) UserLoginSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AssessmentPaperKey returns the cache key for an assessment's candidate-facing paper.
func (r *CacheKeyStruct) AssessmentPaperKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:paper", assessmentID)
}

// AssessmentAnswerKeyKey returns the cache key for an assessment's answer key.
func (r *CacheKeyStruct) AssessmentAnswerKeyKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:answer_key", assessmentID)
}

// AssessmentTimeLimitKey returns the cache key for an assessment's time limit.
func (r *CacheKeyStruct) AssessmentTimeLimitKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:time_limit", assessmentID)
}

// AssessmentMonitorChannel returns the Redis PubSub channel name for the
// live proctoring monitor of an assessment.
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:monitor", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
