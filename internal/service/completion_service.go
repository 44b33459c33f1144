package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/model"
)

// AttemptResult is the terminal outcome of one attempt.
type AttemptResult struct {
	Status      model.SessionStatus `json:"status"`
	Score       int                 `json:"score"`
	Passed      bool                `json:"passed"`
	CompletedAt time.Time           `json:"completed_at"`
}

// CompletionService is the single place an attempt becomes terminal and
// receives a score. Complete is idempotent: a manual submit racing the
// deadline-expiry path produces exactly one persisted result, and the
// losing caller gets the winner's score back, never an error.
type CompletionService struct {
	sessions    SessionStore
	answers     AnswerStore
	assessments AssessmentStore
	resolver    QuestionSetResolver
	notifier    Notifier
	log         zerolog.Logger
	now         func() time.Time
}

// NewCompletionService creates a new CompletionService.
func NewCompletionService(
	sessions SessionStore,
	answers AnswerStore,
	assessments AssessmentStore,
	resolver QuestionSetResolver,
	notifier Notifier,
	log zerolog.Logger,
) *CompletionService {
	return &CompletionService{
		sessions:    sessions,
		answers:     answers,
		assessments: assessments,
		resolver:    resolver,
		notifier:    notifier,
		log:         log.With().Str("component", "completion_service").Logger(),
		now:         time.Now,
	}
}

// Complete transitions the session to COMPLETED or TIMED_OUT and scores
// it. The client-declared reason is advisory: if the server-side
// deadline has passed, the finish is reclassified as expired regardless
// of what the client claims.
func (s *CompletionService) Complete(ctx context.Context, sessionID uuid.UUID, userID int, reason model.CompletionReason) (*AttemptResult, error) {
	sess, err := s.loadOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if sess.Status.Terminal() {
		return resultFromSession(sess)
	}

	assessment, err := s.assessments.GetByID(ctx, sess.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	now := s.now()
	if !now.Before(sess.StartedAt.Add(assessment.TimeLimit())) {
		reason = model.ReasonExpired
	}

	score, passed, questionIDs, correctFlags, err := s.scoreAttempt(ctx, sess, assessment)
	if err != nil {
		return nil, err
	}

	status := model.SessionStatusCompleted
	if reason == model.ReasonExpired {
		status = model.SessionStatusTimedOut
	}

	applied, err := s.sessions.Finalize(ctx, sess.ID, status, score, passed, now)
	if err != nil {
		return nil, fmt.Errorf("finalize session: %w", err)
	}

	if !applied {
		// Lost the CAS: another trigger finalized first. Read back and
		// return the winner's persisted result — never our own numbers,
		// so one session can never report two different scores.
		winner, err := s.sessions.GetByID(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("read back finalized session: %w", err)
		}
		return resultFromSession(winner)
	}

	// Correctness flags are derived data; failing to write them back
	// must not undo an already-final attempt.
	if err := s.answers.MarkCorrectness(ctx, sess.ID, questionIDs, correctFlags); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID.String()).Msg("Failed to persist answer correctness")
	}

	if err := s.notifier.NotifyResult(ctx, sess.UserID, sess.AssessmentID, score, passed); err != nil {
		s.log.Warn().Err(err).Int("user_id", sess.UserID).Msg("Result notification dispatch failed")
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("status", string(status)).
		Int("score", score).
		Bool("passed", passed).
		Msg("Attempt finalized")

	return &AttemptResult{Status: status, Score: score, Passed: passed, CompletedAt: now}, nil
}

// scoreAttempt grades the attempt against the authoritative answer key.
// A question is correct only if an answer row exists and matches the
// key; unanswered questions count as incorrect. Pure arithmetic — it
// cannot fail once the session is confirmed in progress.
func (s *CompletionService) scoreAttempt(ctx context.Context, sess *model.Session, assessment *model.Assessment) (score int, passed bool, questionIDs []uuid.UUID, correctFlags []bool, err error) {
	rows, err := s.answers.ListBySession(ctx, sess.ID)
	if err != nil {
		return 0, false, nil, nil, fmt.Errorf("list answers: %w", err)
	}

	key, err := s.resolver.AnswerKey(ctx, sess.AssessmentID)
	if err != nil {
		return 0, false, nil, nil, fmt.Errorf("load answer key: %w", err)
	}

	selected := make(map[uuid.UUID]int, len(rows))
	for _, a := range rows {
		selected[a.QuestionID] = a.SelectedIndex
	}

	correctCount := 0
	questionIDs = make([]uuid.UUID, 0, len(rows))
	correctFlags = make([]bool, 0, len(rows))

	for _, qid := range sess.QuestionOrder {
		idx, answered := selected[qid]
		correct := answered && idx == key[qid]
		if correct {
			correctCount++
		}
		if answered {
			questionIDs = append(questionIDs, qid)
			correctFlags = append(correctFlags, correct)
		}
	}

	total := assessment.QuestionCount
	if total == 0 {
		total = len(sess.QuestionOrder)
	}
	if total > 0 {
		score = int(math.Round(100 * float64(correctCount) / float64(total)))
	}
	passed = score >= assessment.PassScore
	return score, passed, questionIDs, correctFlags, nil
}

func (s *CompletionService) loadOwnedSession(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrNotFound
	}
	if sess.UserID != userID {
		return nil, ErrNotFound
	}
	return sess, nil
}

func resultFromSession(sess *model.Session) (*AttemptResult, error) {
	if sess.Score == nil || sess.Passed == nil || sess.CompletedAt == nil {
		return nil, fmt.Errorf("terminal session %s has no persisted result", sess.ID)
	}
	return &AttemptResult{
		Status:      sess.Status,
		Score:       *sess.Score,
		Passed:      *sess.Passed,
		CompletedAt: *sess.CompletedAt,
	}, nil
}
