package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/config"
	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

// ContentService is the question set resolver: it materializes the
// candidate-facing paper and the server-side answer key for an
// assessment, caching both in Redis with PostgreSQL as source of truth.
type ContentService struct {
	assessmentRepo *repository.AssessmentRepository
	questionRepo   *repository.QuestionRepository
	rdb            *redis.Client
	log            zerolog.Logger
}

// NewContentService creates a new ContentService.
func NewContentService(
	assessmentRepo *repository.AssessmentRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *ContentService {
	return &ContentService{
		assessmentRepo: assessmentRepo,
		questionRepo:   questionRepo,
		rdb:            rdb,
		log:            log.With().Str("component", "content_service").Logger(),
	}
}

// Paper returns the candidate-facing question payload. The correct
// index is stripped before the payload is built, so it can never leak
// through this path.
func (s *ContentService) Paper(ctx context.Context, assessment *model.Assessment) (*model.AssessmentPaper, error) {
	cacheKey := config.CacheKey.AssessmentPaperKey(assessment.ID.String())

	if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var paper model.AssessmentPaper
		if err := json.Unmarshal([]byte(raw), &paper); err == nil {
			return &paper, nil
		}
		// Corrupt cache entry — rebuild from the database.
		s.rdb.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cached paper: %w", err)
	}

	paper, _, err := s.buildFromDB(ctx, assessment)
	if err != nil {
		return nil, err
	}

	// Self-heal: put it back so the next request is a cache hit.
	if raw, err := json.Marshal(paper); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", assessment.ID.String()).Msg("Failed to cache paper")
		}
	}

	return paper, nil
}

// AnswerKey returns the authoritative question → correct index map.
// Server-side only; never embedded in a candidate response.
func (s *ContentService) AnswerKey(ctx context.Context, assessmentID uuid.UUID) (model.AnswerKey, error) {
	cacheKey := config.CacheKey.AssessmentAnswerKeyKey(assessmentID.String())

	if raw, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		var key model.AnswerKey
		if err := json.Unmarshal([]byte(raw), &key); err == nil {
			return key, nil
		}
		s.rdb.Del(ctx, cacheKey)
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get cached answer key: %w", err)
	}

	questions, err := s.questionRepo.ListByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	key := make(model.AnswerKey, len(questions))
	for _, q := range questions {
		key[q.ID] = q.CorrectIndex
	}

	if raw, err := json.Marshal(key); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, raw, 0).Err(); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", assessmentID.String()).Msg("Failed to cache answer key")
		}
	}

	return key, nil
}

// ListForOrg returns published assessments visible to an organization.
func (s *ContentService) ListForOrg(ctx context.Context, orgID int) ([]model.Assessment, error) {
	return s.assessmentRepo.ListByOrg(ctx, orgID)
}

// PrewarmAllCaches loads every published assessment's paper and answer
// key into Redis. Called once at startup before accepting traffic so a
// thundering herd at exam start never stampedes PostgreSQL.
func (s *ContentService) PrewarmAllCaches(ctx context.Context) error {
	assessments, err := s.assessmentRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published assessments: %w", err)
	}

	for i := range assessments {
		a := &assessments[i]
		paper, key, err := s.buildFromDB(ctx, a)
		if err != nil {
			s.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Prewarm skipped assessment")
			continue
		}

		pipe := s.rdb.Pipeline()
		if raw, err := json.Marshal(paper); err == nil {
			pipe.Set(ctx, config.CacheKey.AssessmentPaperKey(a.ID.String()), raw, 0)
		}
		if raw, err := json.Marshal(key); err == nil {
			pipe.Set(ctx, config.CacheKey.AssessmentAnswerKeyKey(a.ID.String()), raw, 0)
		}
		pipe.Set(ctx, config.CacheKey.AssessmentTimeLimitKey(a.ID.String()), a.TimeLimitMinutes, 0)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Warn().Err(err).Str("assessment_id", a.ID.String()).Msg("Prewarm pipeline failed")
		}
	}

	s.log.Info().Int("count", len(assessments)).Msg("Assessment caches prewarmed")
	return nil
}

// InvalidateCache drops the cached paper and key for one assessment,
// used when content management republishes.
func (s *ContentService) InvalidateCache(ctx context.Context, assessmentID uuid.UUID) error {
	return s.rdb.Del(ctx,
		config.CacheKey.AssessmentPaperKey(assessmentID.String()),
		config.CacheKey.AssessmentAnswerKeyKey(assessmentID.String()),
		config.CacheKey.AssessmentTimeLimitKey(assessmentID.String()),
	).Err()
}

func (s *ContentService) buildFromDB(ctx context.Context, assessment *model.Assessment) (*model.AssessmentPaper, model.AnswerKey, error) {
	questions, err := s.questionRepo.ListByAssessment(ctx, assessment.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}

	paper := &model.AssessmentPaper{
		AssessmentID:     assessment.ID,
		Title:            assessment.Title,
		TimeLimitMinutes: assessment.TimeLimitMinutes,
		Questions:        make([]model.QuestionForCandidate, 0, len(questions)),
	}
	key := make(model.AnswerKey, len(questions))

	for _, q := range questions {
		paper.Questions = append(paper.Questions, model.QuestionForCandidate{
			ID:       q.ID,
			Stem:     q.Stem,
			Options:  q.Options,
			OrderNum: q.OrderNum,
		})
		key[q.ID] = q.CorrectIndex
	}

	return paper, key, nil
}
