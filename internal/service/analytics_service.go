package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

const (
	distributionBuckets = 10
	trendWeeks          = 12
	performerListSize   = 5
)

// ScoreBucket is one fixed-width slice of the score distribution.
type ScoreBucket struct {
	Label string `json:"label"` // e.g. "70-79", last bucket "90-100"
	Count int    `json:"count"`
}

// WeeklyBucket is one calendar week of the completion trend. Weeks with
// zero completions report AvgScore 0 and are never dropped — consumers
// plot a fixed-width chart.
type WeeklyBucket struct {
	WeekStart   time.Time `json:"week_start"`
	Completions int       `json:"completions"`
	AvgScore    float64   `json:"avg_score"`
}

// Performer is one entry in the top/bottom ranking.
type Performer struct {
	UserID   int    `json:"user_id"`
	UserName string `json:"user_name"`
	Score    int    `json:"score"`
}

// Summary consolidates read-only rollups over terminal attempts.
type Summary struct {
	Attempts      int           `json:"attempts"`
	AvgScore      float64       `json:"avg_score"`
	MedianScore   float64       `json:"median_score"`
	PassRate      int           `json:"pass_rate"` // rounded percentage
	Distribution  []ScoreBucket `json:"distribution"`
	TopPerformers []Performer   `json:"top_performers"`
	Bottom        []Performer   `json:"bottom_performers"`
}

// OrgSummary extends Summary with the organization-wide weekly trend.
type OrgSummary struct {
	Summary
	WeeklyTrend []WeeklyBucket `json:"weekly_trend"`
}

// AnalyticsService computes reporting rollups from completed sessions.
// Read-only and off the hot path; an attempt for statistical purposes
// is any terminal session, timed out or not.
type AnalyticsService struct {
	attempts    AttemptStore
	assessments AssessmentStore
	log         zerolog.Logger
	now         func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(attempts AttemptStore, assessments AssessmentStore, log zerolog.Logger) *AnalyticsService {
	return &AnalyticsService{
		attempts:    attempts,
		assessments: assessments,
		log:         log.With().Str("component", "analytics_service").Logger(),
		now:         time.Now,
	}
}

// SummarizeAssessment rolls up one assessment for a manager of its org.
func (s *AnalyticsService) SummarizeAssessment(ctx context.Context, assessmentID uuid.UUID, viewer Viewer) (*Summary, error) {
	if !model.HasMinimumRole(viewer.Role, model.RoleContentManager) {
		return nil, ErrUnauthorized
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, ErrNotFound
	}
	if assessment.OrgID != viewer.OrgID {
		return nil, ErrUnauthorized
	}

	records, err := s.attempts.ListTerminalByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	summary := buildSummary(records)
	return &summary, nil
}

// SummarizeOrg rolls up every assessment of the viewer's organization,
// including the 12-week completion trend.
func (s *AnalyticsService) SummarizeOrg(ctx context.Context, viewer Viewer) (*OrgSummary, error) {
	if !model.HasMinimumRole(viewer.Role, model.RoleContentManager) {
		return nil, ErrUnauthorized
	}

	records, err := s.attempts.ListTerminalByOrg(ctx, viewer.OrgID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	return &OrgSummary{
		Summary:     buildSummary(records),
		WeeklyTrend: weeklyTrend(s.now(), records),
	}, nil
}

func buildSummary(records []repository.AttemptRecord) Summary {
	scores := make([]int, 0, len(records))
	for _, r := range records {
		if r.Score != nil {
			scores = append(scores, *r.Score)
		}
	}

	return Summary{
		Attempts:      len(records),
		AvgScore:      meanScore(scores),
		MedianScore:   medianScore(scores),
		PassRate:      passRate(records),
		Distribution:  distributeScores(scores),
		TopPerformers: rankPerformers(records, true),
		Bottom:        rankPerformers(records, false),
	}
}

// meanScore returns the mean over non-null scores, 0 if none.
func meanScore(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}

// medianScore sorts ascending; even counts average the two middle values.
func medianScore(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	sorted := make([]int, len(scores))
	copy(sorted, scores)
	sort.Ints(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return float64(sorted[mid])
}

// passRate returns count(passed) / count(attempts) as a rounded
// percentage, 0 if there are no attempts.
func passRate(records []repository.AttemptRecord) int {
	if len(records) == 0 {
		return 0
	}
	passed := 0
	for _, r := range records {
		if r.Passed != nil && *r.Passed {
			passed++
		}
	}
	return int(math.Round(100 * float64(passed) / float64(len(records))))
}

// distributeScores places each score into one of 10 fixed-width buckets
// over [0,100]. A perfect 100 lands in the top bucket rather than
// needing an 11th.
func distributeScores(scores []int) []ScoreBucket {
	buckets := make([]ScoreBucket, distributionBuckets)
	for i := range buckets {
		lo := i * 10
		hi := lo + 9
		if i == distributionBuckets-1 {
			buckets[i].Label = fmt.Sprintf("%d-100", lo)
		} else {
			buckets[i].Label = fmt.Sprintf("%d-%d", lo, hi)
		}
	}
	for _, s := range scores {
		idx := s / 10
		if idx > distributionBuckets-1 {
			idx = distributionBuckets - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].Count++
	}
	return buckets
}

// weeklyTrend reports the last 12 calendar weeks (boundary: local
// Sunday), oldest first. Output length is always exactly 12.
func weeklyTrend(now time.Time, records []repository.AttemptRecord) []WeeklyBucket {
	currentWeek := weekStart(now)

	trend := make([]WeeklyBucket, trendWeeks)
	for i := range trend {
		trend[i].WeekStart = currentWeek.AddDate(0, 0, -7*(trendWeeks-1-i))
	}
	windowStart := trend[0].WeekStart

	sums := make([]int, trendWeeks)
	scored := make([]int, trendWeeks)
	for _, r := range records {
		if r.CompletedAt == nil {
			continue
		}
		completed := r.CompletedAt.In(now.Location())
		if completed.Before(windowStart) || !completed.Before(currentWeek.AddDate(0, 0, 7)) {
			continue
		}
		idx := int(completed.Sub(windowStart).Hours() / (24 * 7))
		if idx < 0 || idx >= trendWeeks {
			continue
		}
		trend[idx].Completions++
		if r.Score != nil {
			sums[idx] += *r.Score
			scored[idx]++
		}
	}

	for i := range trend {
		if scored[i] > 0 {
			trend[i].AvgScore = float64(sums[i]) / float64(scored[i])
		}
	}
	return trend
}

// weekStart returns local midnight of the Sunday starting t's week.
func weekStart(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// rankPerformers returns the first 5 attempts sorted by score. Ties
// keep the repository's deterministic order — unspecified to consumers
// but stable within one run.
func rankPerformers(records []repository.AttemptRecord, top bool) []Performer {
	scored := make([]repository.AttemptRecord, 0, len(records))
	for _, r := range records {
		if r.Score != nil {
			scored = append(scored, r)
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if top {
			return *scored[i].Score > *scored[j].Score
		}
		return *scored[i].Score < *scored[j].Score
	})

	n := performerListSize
	if len(scored) < n {
		n = len(scored)
	}

	out := make([]Performer, 0, n)
	for _, r := range scored[:n] {
		out = append(out, Performer{UserID: r.UserID, UserName: r.UserName, Score: *r.Score})
	}
	return out
}
