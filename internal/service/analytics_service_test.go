package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

func record(userID, score int, passed bool, completedAt time.Time) repository.AttemptRecord {
	return repository.AttemptRecord{
		SessionID:   uuid.New(),
		UserID:      userID,
		UserName:    "user",
		Status:      model.SessionStatusCompleted,
		Score:       &score,
		Passed:      &passed,
		CompletedAt: &completedAt,
	}
}

func newAnalyticsFixture(records []repository.AttemptRecord) (*AnalyticsService, *model.Assessment) {
	assessment := &model.Assessment{
		ID:     uuid.New(),
		OrgID:  fixtureOrgID,
		Status: model.AssessmentStatusPublished,
	}
	attempts := newFakeAttemptStore()
	attempts.byAssessment[assessment.ID] = records
	attempts.byOrg[fixtureOrgID] = records

	svc := NewAnalyticsService(attempts, newFakeAssessmentStore(assessment), nopLogger())
	svc.now = func() time.Time { return fixtureStart }
	return svc, assessment
}

func TestSummarizeAssessmentRollup(t *testing.T) {
	completedAt := fixtureStart.Add(-time.Hour)
	records := []repository.AttemptRecord{
		record(1, 80, true, completedAt),
		record(2, 60, false, completedAt),
		record(3, 90, true, completedAt),
		record(4, 100, true, completedAt),
	}
	svc, assessment := newAnalyticsFixture(records)

	summary, err := svc.SummarizeAssessment(context.Background(), assessment.ID, managerViewer())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Attempts)
	assert.InDelta(t, 82.5, summary.AvgScore, 0.001)
	assert.InDelta(t, 85.0, summary.MedianScore, 0.001, "even count averages the middle pair")
	assert.Equal(t, 75, summary.PassRate)

	require.Len(t, summary.Distribution, 10)
	total := 0
	for _, b := range summary.Distribution {
		total += b.Count
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, "90-100", summary.Distribution[9].Label)
	assert.Equal(t, 2, summary.Distribution[9].Count, "a perfect 100 shares the top bucket")
	assert.Equal(t, 1, summary.Distribution[6].Count)

	require.Len(t, summary.TopPerformers, 4)
	assert.Equal(t, 100, summary.TopPerformers[0].Score)
	assert.Equal(t, 60, summary.Bottom[0].Score)
}

func TestSummarizeAssessmentGates(t *testing.T) {
	svc, assessment := newAnalyticsFixture(nil)
	ctx := context.Background()

	_, err := svc.SummarizeAssessment(ctx, assessment.ID, candidateViewer())
	assert.ErrorIs(t, err, ErrUnauthorized)

	foreign := managerViewer()
	foreign.OrgID = fixtureOrgID + 1
	_, err = svc.SummarizeAssessment(ctx, assessment.ID, foreign)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.SummarizeAssessment(ctx, uuid.New(), managerViewer())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSummarizeEmptyAssessment(t *testing.T) {
	svc, assessment := newAnalyticsFixture(nil)

	summary, err := svc.SummarizeAssessment(context.Background(), assessment.ID, managerViewer())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Attempts)
	assert.Zero(t, summary.AvgScore)
	assert.Zero(t, summary.MedianScore)
	assert.Zero(t, summary.PassRate)
	assert.Len(t, summary.Distribution, 10, "buckets are fixed-width even with no data")
	assert.Empty(t, summary.TopPerformers)
}

func TestMedianScoreOddCount(t *testing.T) {
	assert.InDelta(t, 70.0, medianScore([]int{90, 70, 10}), 0.001)
	assert.InDelta(t, 55.0, medianScore([]int{40, 70}), 0.001)
	assert.Zero(t, medianScore(nil))
}

func TestPassRateCountsUnscoredAttempts(t *testing.T) {
	passed := true
	records := []repository.AttemptRecord{
		record(1, 80, true, fixtureStart),
		// A timed-out attempt whose scoring write was lost still
		// counts in the denominator.
		{SessionID: uuid.New(), UserID: 2, Status: model.SessionStatusTimedOut},
		record(3, 90, passed, fixtureStart),
	}
	assert.Equal(t, 67, passRate(records))
	assert.Zero(t, passRate(nil))
}

func TestWeeklyTrendFixedWindow(t *testing.T) {
	records := []repository.AttemptRecord{
		record(1, 80, true, fixtureStart.Add(-2*time.Hour)),
		record(2, 60, false, fixtureStart.Add(-2*time.Hour)),
		record(3, 90, true, fixtureStart.AddDate(0, 0, -7*3)),
		// Older than the window: excluded.
		record(4, 50, false, fixtureStart.AddDate(0, 0, -7*13)),
	}
	svc, _ := newAnalyticsFixture(records)

	summary, err := svc.SummarizeOrg(context.Background(), managerViewer())
	require.NoError(t, err)

	trend := summary.WeeklyTrend
	require.Len(t, trend, 12, "window length never varies with the data")

	for i := 1; i < len(trend); i++ {
		assert.Equal(t, 7*24*time.Hour, trend[i].WeekStart.Sub(trend[i-1].WeekStart))
	}

	last := trend[len(trend)-1]
	assert.Equal(t, 2, last.Completions)
	assert.InDelta(t, 70.0, last.AvgScore, 0.001)

	assert.Equal(t, 1, trend[len(trend)-4].Completions)

	total := 0
	for _, w := range trend {
		total += w.Completions
	}
	assert.Equal(t, 3, total, "out-of-window completions are dropped")
}

func TestRankPerformersFiltersUnscored(t *testing.T) {
	records := []repository.AttemptRecord{
		record(1, 50, false, fixtureStart),
		record(2, 90, true, fixtureStart),
		{SessionID: uuid.New(), UserID: 3, Status: model.SessionStatusTimedOut},
		record(4, 70, true, fixtureStart),
		record(5, 85, true, fixtureStart),
		record(6, 20, false, fixtureStart),
		record(7, 95, true, fixtureStart),
	}

	top := rankPerformers(records, true)
	require.Len(t, top, 5)
	assert.Equal(t, []int{95, 90, 85, 70, 50}, performerScores(top))

	bottom := rankPerformers(records, false)
	require.Len(t, bottom, 5)
	assert.Equal(t, []int{20, 50, 70, 85, 90}, performerScores(bottom))
}

func performerScores(performers []Performer) []int {
	out := make([]int, 0, len(performers))
	for _, p := range performers {
		out = append(out, p.Score)
	}
	return out
}
