package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

// AttemptState is the full payload a candidate needs to render an
// attempt: the session, the paper for its fixed question order, any
// previously submitted answers for UI restoration, and the
// authoritative remaining time.
type AttemptState struct {
	Session          *model.Session         `json:"session"`
	Paper            *model.AssessmentPaper `json:"paper"`
	Answers          map[uuid.UUID]int      `json:"answers"`
	RemainingSeconds int                    `json:"remaining_seconds"`
}

// AttemptService is the session lifecycle manager: the entry point
// candidates call before an attempt and on every reconnect. The
// deadline is never an active timer — it is recomputed here and at
// completion from started_at and the server clock.
type AttemptService struct {
	sessions    SessionStore
	answers     AnswerStore
	assessments AssessmentStore
	resolver    QuestionSetResolver
	completion  *CompletionService
	log         zerolog.Logger
	now         func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	sessions SessionStore,
	answers AnswerStore,
	assessments AssessmentStore,
	resolver QuestionSetResolver,
	completion *CompletionService,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		sessions:    sessions,
		answers:     answers,
		assessments: assessments,
		resolver:    resolver,
		completion:  completion,
		log:         log.With().Str("component", "attempt_service").Logger(),
		now:         time.Now,
	}
}

// StartOrResume returns the candidate's attempt for the assessment,
// creating it on first call. Resumes past the wall-clock deadline are
// routed into expiry completion and return the terminal session.
func (s *AttemptService) StartOrResume(ctx context.Context, userID int, assessmentID uuid.UUID) (*AttemptState, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotAvailable
		}
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	if assessment.Status != model.AssessmentStatusPublished {
		return nil, ErrNotAvailable
	}

	paper, err := s.resolver.Paper(ctx, assessment)
	if err != nil {
		return nil, fmt.Errorf("resolve question set: %w", err)
	}

	sess, err := s.sessions.GetInProgress(ctx, assessmentID, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		sess, err = s.createSession(ctx, userID, assessment, paper)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("get session: %w", err)
	}

	remaining := s.remaining(sess, assessment)
	if sess.Status == model.SessionStatusInProgress && remaining == 0 {
		// Deadline already passed. Score whatever answers exist and
		// hand back the terminal session instead of a resumable one.
		if _, err := s.completion.Complete(ctx, sess.ID, userID, model.ReasonExpired); err != nil {
			return nil, fmt.Errorf("expire overdue session: %w", err)
		}
		sess, err = s.sessions.GetByID(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("reload expired session: %w", err)
		}
	}

	answers, err := s.previousAnswers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	return &AttemptState{
		Session:          sess,
		Paper:            paper,
		Answers:          answers,
		RemainingSeconds: remaining,
	}, nil
}

// GetState re-reads an attempt the candidate already owns, for page
// reloads and the countdown stream. Read-only.
func (s *AttemptService) GetState(ctx context.Context, sessionID uuid.UUID, userID int) (*AttemptState, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrNotFound
	}
	if sess.UserID != userID {
		return nil, ErrNotFound
	}

	assessment, err := s.assessments.GetByID(ctx, sess.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	paper, err := s.resolver.Paper(ctx, assessment)
	if err != nil {
		return nil, fmt.Errorf("resolve question set: %w", err)
	}

	answers, err := s.previousAnswers(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	return &AttemptState{
		Session:          sess,
		Paper:            paper,
		Answers:          answers,
		RemainingSeconds: s.remaining(sess, assessment),
	}, nil
}

// GetSummary returns the candidate-scoped view of a finished attempt.
func (s *AttemptService) GetSummary(ctx context.Context, sessionID uuid.UUID, userID int) (*model.Session, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrNotFound
	}
	if sess.UserID != userID {
		return nil, ErrNotFound
	}
	return sess, nil
}

// ResetAttempt removes a candidate's attempt so they can start over.
// Administrative operation — the engine itself never deletes sessions.
func (s *AttemptService) ResetAttempt(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	s.log.Info().Str("session_id", sessionID.String()).Msg("Attempt reset by administrator")
	return nil
}

// createSession materializes the fixed question order and inserts the
// single IN_PROGRESS row. A concurrent double-start loses the insert to
// the storage uniqueness constraint and recovers by re-reading the
// winner — the caller never sees the race.
func (s *AttemptService) createSession(ctx context.Context, userID int, assessment *model.Assessment, paper *model.AssessmentPaper) (*model.Session, error) {
	order := make([]uuid.UUID, 0, len(paper.Questions))
	for _, q := range paper.Questions {
		order = append(order, q.ID)
	}

	sess := &model.Session{
		AssessmentID:  assessment.ID,
		UserID:        userID,
		Status:        model.SessionStatusInProgress,
		StartedAt:     s.now(),
		QuestionOrder: order,
		TabSwitchLog:  []model.FocusEvent{},
	}

	err := s.sessions.Create(ctx, sess)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, fetchErr := s.sessions.GetInProgress(ctx, assessment.ID, userID)
		if fetchErr != nil {
			return nil, fmt.Errorf("%w: re-read after concurrent start failed: %v", ErrAlreadyStarted, fetchErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().
		Str("session_id", sess.ID.String()).
		Str("assessment_id", assessment.ID.String()).
		Int("user_id", userID).
		Msg("Attempt started")

	return sess, nil
}

// remaining recomputes the authoritative remaining seconds from
// started_at and the server clock. Client-reported elapsed time is
// never an input here.
func (s *AttemptService) remaining(sess *model.Session, assessment *model.Assessment) int {
	if sess.Status.Terminal() {
		return 0
	}
	left := assessment.TimeLimit() - s.now().Sub(sess.StartedAt)
	if left < 0 {
		return 0
	}
	return int(left.Seconds())
}

func (s *AttemptService) previousAnswers(ctx context.Context, sessionID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answers := make(map[uuid.UUID]int, len(rows))
	for _, a := range rows {
		answers[a.QuestionID] = a.SelectedIndex
	}
	return answers, nil
}
