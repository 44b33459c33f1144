package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/attestra/attestra-backend/internal/model"
	"github.com/attestra/attestra-backend/internal/repository"
)

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// In-memory store fakes. They mirror the storage guarantees the
// services rely on (partial uniqueness on live attempts, CAS finalize,
// closed-session write guards) so the race-recovery paths can be
// exercised deterministically.

// ─── Session Store ─────────────────────────────────────────────────

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.Session)}
}

func cloneSession(s *model.Session) *model.Session {
	c := *s
	c.QuestionOrder = append([]uuid.UUID(nil), s.QuestionOrder...)
	c.TabSwitchLog = append([]model.FocusEvent(nil), s.TabSwitchLog...)
	return &c
}

func (f *fakeSessionStore) Create(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.sessions {
		if existing.UserID == s.UserID &&
			existing.AssessmentID == s.AssessmentID &&
			existing.Status == model.SessionStatusInProgress {
			return repository.ErrDuplicate
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	f.sessions[s.ID] = cloneSession(s)
	return nil
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneSession(s), nil
}

func (f *fakeSessionStore) GetInProgress(_ context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.AssessmentID == assessmentID && s.UserID == userID && s.Status == model.SessionStatusInProgress {
			return cloneSession(s), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeSessionStore) GetLatest(_ context.Context, assessmentID uuid.UUID, userID int) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.Session
	for _, s := range f.sessions {
		if s.AssessmentID != assessmentID || s.UserID != userID {
			continue
		}
		if latest == nil || s.StartedAt.After(latest.StartedAt) {
			latest = s
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	return cloneSession(latest), nil
}

func (f *fakeSessionStore) Finalize(_ context.Context, id uuid.UUID, status model.SessionStatus, score int, passed bool, completedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	s.Status = status
	s.Score = &score
	s.Passed = &passed
	s.CompletedAt = &completedAt
	return true, nil
}

func (f *fakeSessionStore) AppendFocusLoss(_ context.Context, id uuid.UUID, event model.FocusEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.Status != model.SessionStatusInProgress {
		return false, nil
	}
	s.TabSwitchCount++
	s.TabSwitchLog = append(s.TabSwitchLog, event)
	return true, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.sessions, id)
	return nil
}

// ─── Answer Store ──────────────────────────────────────────────────

type fakeAnswerStore struct {
	mu       sync.Mutex
	sessions *fakeSessionStore
	answers  map[uuid.UUID]map[uuid.UUID]model.Answer

	// forceClosed makes the next Upsert report the guard rejection,
	// as if the session went terminal between the service's read and
	// the write.
	forceClosed bool
}

func newFakeAnswerStore(sessions *fakeSessionStore) *fakeAnswerStore {
	return &fakeAnswerStore{
		sessions: sessions,
		answers:  make(map[uuid.UUID]map[uuid.UUID]model.Answer),
	}
}

func (f *fakeAnswerStore) Upsert(_ context.Context, sessionID, questionID uuid.UUID, selectedIndex int, submittedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceClosed {
		f.forceClosed = false
		return false, nil
	}

	f.sessions.mu.Lock()
	sess, ok := f.sessions.sessions[sessionID]
	inProgress := ok && sess.Status == model.SessionStatusInProgress
	f.sessions.mu.Unlock()
	if !inProgress {
		return false, nil
	}

	if f.answers[sessionID] == nil {
		f.answers[sessionID] = make(map[uuid.UUID]model.Answer)
	}
	f.answers[sessionID][questionID] = model.Answer{
		SessionID:     sessionID,
		QuestionID:    questionID,
		SelectedIndex: selectedIndex,
		SubmittedAt:   submittedAt,
	}
	return true, nil
}

func (f *fakeAnswerStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Answer, 0, len(f.answers[sessionID]))
	for _, a := range f.answers[sessionID] {
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeAnswerStore) MarkCorrectness(_ context.Context, sessionID uuid.UUID, questionIDs []uuid.UUID, correct []bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, qid := range questionIDs {
		a, ok := f.answers[sessionID][qid]
		if !ok {
			continue
		}
		c := correct[i]
		a.IsCorrect = &c
		f.answers[sessionID][qid] = a
	}
	return nil
}

// ─── Assessment Store ──────────────────────────────────────────────

type fakeAssessmentStore struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]*model.Assessment
}

func newFakeAssessmentStore(assessments ...*model.Assessment) *fakeAssessmentStore {
	f := &fakeAssessmentStore{assessments: make(map[uuid.UUID]*model.Assessment)}
	for _, a := range assessments {
		f.assessments[a.ID] = a
	}
	return f
}

func (f *fakeAssessmentStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

// ─── Attempt Store ─────────────────────────────────────────────────

type fakeAttemptStore struct {
	byAssessment map[uuid.UUID][]repository.AttemptRecord
	byOrg        map[int][]repository.AttemptRecord
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		byAssessment: make(map[uuid.UUID][]repository.AttemptRecord),
		byOrg:        make(map[int][]repository.AttemptRecord),
	}
}

func (f *fakeAttemptStore) ListTerminalByAssessment(_ context.Context, assessmentID uuid.UUID) ([]repository.AttemptRecord, error) {
	return f.byAssessment[assessmentID], nil
}

func (f *fakeAttemptStore) ListTerminalByOrg(_ context.Context, orgID int) ([]repository.AttemptRecord, error) {
	return f.byOrg[orgID], nil
}

// ─── Question Set Resolver ─────────────────────────────────────────

type fakeResolver struct {
	paper *model.AssessmentPaper
	key   model.AnswerKey
}

func (f *fakeResolver) Paper(_ context.Context, _ *model.Assessment) (*model.AssessmentPaper, error) {
	return f.paper, nil
}

func (f *fakeResolver) AnswerKey(_ context.Context, _ uuid.UUID) (model.AnswerKey, error) {
	return f.key, nil
}

// ─── Side-Effect Sinks ─────────────────────────────────────────────

type notifiedResult struct {
	UserID       int
	AssessmentID uuid.UUID
	Score        int
	Passed       bool
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []notifiedResult
}

func (f *fakeNotifier) NotifyResult(_ context.Context, userID int, assessmentID uuid.UUID, score int, passed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, notifiedResult{userID, assessmentID, score, passed})
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type fakeTelemetrySink struct {
	mu      sync.Mutex
	samples []ClockDriftSample
}

func (f *fakeTelemetrySink) RecordClockDrift(_ context.Context, sample ClockDriftSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
	return nil
}

type fakeMonitorPublisher struct {
	mu     sync.Mutex
	events []any
}

func (f *fakeMonitorPublisher) PublishMonitorEvent(_ context.Context, _ uuid.UUID, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, payload)
	return nil
}

// ─── Shared Fixture ────────────────────────────────────────────────

// engineFixture wires every service against shared fakes with a
// controllable clock starting at a fixed instant.
type engineFixture struct {
	sessions    *fakeSessionStore
	answers     *fakeAnswerStore
	assessments *fakeAssessmentStore
	resolver    *fakeResolver
	notifier    *fakeNotifier
	telemetry   *fakeTelemetrySink
	monitor     *fakeMonitorPublisher

	attempt    *AttemptService
	answer     *AnswerService
	completion *CompletionService
	proctoring *ProctoringService

	assessment  *model.Assessment
	questionIDs []uuid.UUID
	clock       time.Time
}

const (
	fixtureUserID = 42
	fixtureOrgID  = 7
)

var fixtureStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newEngineFixture() *engineFixture {
	assessment := &model.Assessment{
		ID:               uuid.New(),
		OrgID:            fixtureOrgID,
		Title:            "Network Fundamentals",
		QuestionCount:    4,
		TimeLimitMinutes: 30,
		PassScore:        70,
		Status:           model.AssessmentStatusPublished,
	}

	questionIDs := make([]uuid.UUID, 4)
	questions := make([]model.QuestionForCandidate, 4)
	key := model.AnswerKey{}
	for i := range questionIDs {
		questionIDs[i] = uuid.New()
		questions[i] = model.QuestionForCandidate{ID: questionIDs[i]}
		key[questionIDs[i]] = i % 4
	}

	fx := &engineFixture{
		sessions:    newFakeSessionStore(),
		assessments: newFakeAssessmentStore(assessment),
		resolver: &fakeResolver{
			paper: &model.AssessmentPaper{
				AssessmentID:     assessment.ID,
				Title:            assessment.Title,
				TimeLimitMinutes: assessment.TimeLimitMinutes,
				Questions:        questions,
			},
			key: key,
		},
		notifier:    &fakeNotifier{},
		telemetry:   &fakeTelemetrySink{},
		monitor:     &fakeMonitorPublisher{},
		assessment:  assessment,
		questionIDs: questionIDs,
		clock:       fixtureStart,
	}
	fx.answers = newFakeAnswerStore(fx.sessions)

	log := nopLogger()
	fx.completion = NewCompletionService(fx.sessions, fx.answers, fx.assessments, fx.resolver, fx.notifier, log)
	fx.attempt = NewAttemptService(fx.sessions, fx.answers, fx.assessments, fx.resolver, fx.completion, log)
	fx.answer = NewAnswerService(fx.sessions, fx.answers, fx.assessments, fx.telemetry, log)
	fx.proctoring = NewProctoringService(fx.sessions, fx.assessments, fx.monitor, log)

	now := func() time.Time { return fx.clock }
	fx.completion.now = now
	fx.attempt.now = now
	fx.answer.now = now
	fx.proctoring.now = now

	return fx
}

// advance moves the fixture clock forward for every service at once.
func (fx *engineFixture) advance(d time.Duration) {
	fx.clock = fx.clock.Add(d)
}

func managerViewer() Viewer {
	return Viewer{UserID: 1, OrgID: fixtureOrgID, Role: model.RoleContentManager}
}

func candidateViewer() Viewer {
	return Viewer{UserID: fixtureUserID, OrgID: fixtureOrgID, Role: model.RoleCandidate}
}
