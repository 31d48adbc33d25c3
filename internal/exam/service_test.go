package exam

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/lock"
	"github.com/mind-engage/mindengage-assess/internal/policy"
)

type fakeUsers struct {
	mu     sync.Mutex
	locked map[string]*time.Time
}

func newFakeUsers() *fakeUsers { return &fakeUsers{locked: map[string]*time.Time{}} }

func (f *fakeUsers) IsStep1Locked(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locked[userID] != nil, nil
}

func (f *fakeUsers) SetStep1Locked(_ context.Context, userID string, at *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[userID] = at
	return nil
}

type fakeEvents struct {
	mu    sync.Mutex
	types []string
}

func (f *fakeEvents) Record(_ context.Context, typ, _ string, _ any) error {
	f.mu.Lock()
	f.types = append(f.types, typ)
	f.mu.Unlock()
	return nil
}

func (f *fakeEvents) seen(typ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.types {
		if t == typ {
			return true
		}
	}
	return false
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc    *Service
	store  *MemoryStore
	users  *fakeUsers
	events *fakeEvents
	clock  *clock
}

func newFixture(t *testing.T, st Settings) *fixture {
	t.Helper()
	f := &fixture{
		store:  NewInMemoryStore(),
		users:  newFakeUsers(),
		events: &fakeEvents{},
		clock:  &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	svc, err := NewService(Deps{
		Exams:        f.store,
		Questions:    f.store,
		Competencies: f.store,
		Policies:     policy.NewInMemoryStore(),
		Users:        f.users,
		Events:       f.events,
	}, WithSettings(st), WithClock(f.clock.now))
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seedBank adds competencies Alpha and Beta with one question per level of
// every step; the correct key is always "a".
func (f *fixture) seedBank(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, name := range []string{"Alpha", "Beta"} {
		_, err := f.store.PutCompetency(ctx, Competency{Name: name, Active: true})
		require.NoError(t, err)
		for _, lv := range cefr.Ordered {
			f.putQuestion(t, name, lv)
		}
	}
}

func (f *fixture) putQuestion(t *testing.T, comp string, lv cefr.Level) Question {
	t.Helper()
	q, err := f.store.PutQuestion(context.Background(), Question{
		Competency: comp,
		Level:      lv,
		Text:       comp + " " + string(lv),
		Options:    []Option{{Key: "a", Text: "right"}, {Key: "b", Text: "wrong"}},
		CorrectKey: "a",
		Active:     true,
	})
	require.NoError(t, err)
	return q
}

// answerN answers the first n questions correctly and the rest wrong.
func (f *fixture) answerN(t *testing.T, e Exam, user string, n int) {
	t.Helper()
	for i, qid := range e.Questions {
		key := "b"
		if i < n {
			key = "a"
		}
		require.NoError(t, f.svc.Answer(context.Background(), e.ID, user, qid, key))
	}
}

func TestStartExamBuildsDeterministicSelection(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)

	e, err := f.svc.StartExam(context.Background(), "u1", cefr.Step1)
	require.NoError(t, err)

	assert.Equal(t, StatusInProgress, e.Status)
	assert.Equal(t, []cefr.Level{cefr.A1, cefr.A2}, e.Levels)
	require.Len(t, e.Questions, 4)
	assert.Empty(t, e.Attempts)
	assert.Equal(t, f.clock.now().Add(4*time.Minute), e.ExpiresAt)

	got := map[string]bool{}
	for _, id := range e.Questions {
		q, err := f.store.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, cefr.Step1.Owns(q.Level))
		got[q.Competency+"/"+string(q.Level)] = true
	}
	assert.Equal(t, map[string]bool{"Alpha/A1": true, "Beta/A1": true, "Alpha/A2": true, "Beta/A2": true}, got)
	assert.True(t, f.events.seen(EventExamStarted))
}

func TestStartExamTopsUpFromSample(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	ctx := context.Background()
	for _, name := range []string{"Alpha", "Beta"} {
		_, err := f.store.PutCompetency(ctx, Competency{Name: name, Active: true})
		require.NoError(t, err)
	}
	f.putQuestion(t, "Alpha", cefr.A1)
	f.putQuestion(t, "Beta", cefr.A1)
	f.putQuestion(t, "Alpha", cefr.A2)
	extra := f.putQuestion(t, "Gamma", cefr.A2)
	f.putQuestion(t, "Gamma", cefr.B1) // wrong step

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	require.Len(t, e.Questions, 4)
	assert.Contains(t, e.Questions, extra.ID)
}

func TestStartExamUsesFallbackCompetencies(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	q := f.putQuestion(t, "Computer Basics", cefr.A1)
	f.putQuestion(t, "Unlisted", cefr.C1)

	e, err := f.svc.StartExam(context.Background(), "u1", cefr.Step1)
	require.NoError(t, err)
	assert.Equal(t, []string{q.ID}, e.Questions)
}

func TestStartExamWithEmptyBank(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	_, err := f.svc.StartExam(context.Background(), "u1", cefr.Step2)
	assert.ErrorIs(t, err, ErrNoQuestions)

	all, err := f.store.ListExams(context.Background(), ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStartExamRejectsBadInput(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	_, err := f.svc.StartExam(context.Background(), "u1", cefr.Step(4))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.svc.StartExam(context.Background(), "", cefr.Step1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStartExamResumesLiveExam(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	first, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.clock.advance(time.Minute)
	again, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
}

func TestPassingStep1UnlocksStep2(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.answerN(t, e, "u1", 3)

	res, err := f.svc.Submit(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, res.Exam.Status)
	require.NotNil(t, res.Exam.ScorePercent)
	assert.InDelta(t, 75.0, *res.Exam.ScorePercent, 1e-9)
	assert.Equal(t, cefr.A2, res.Exam.AwardedLevel)
	assert.True(t, res.Exam.NextStepUnlocked)
	assert.NotNil(t, res.Exam.SubmittedAt)
	assert.Equal(t, Summary{Total: 4, Correct: 3, Percent: 75, AwardedLevel: cefr.A2, NextStepUnlocked: true}, res.Summary)

	locked, _ := f.users.IsStep1Locked(ctx, "u1")
	assert.False(t, locked)

	p, err := f.svc.Progress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, cefr.Step2, p.EligibleStep)
	assert.Equal(t, cefr.A2, p.HighestLevel)
	assert.True(t, p.Step1.Attempted)
	assert.False(t, p.Step2.Attempted)

	_, err = f.svc.StartExam(ctx, "u1", cefr.Step1)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	e2, err := f.svc.StartExam(ctx, "u1", cefr.Step2)
	require.NoError(t, err)
	assert.Equal(t, []cefr.Level{cefr.B1, cefr.B2}, e2.Levels)
}

func TestFailingStep1LocksRetake(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.answerN(t, e, "u1", 0)

	res, err := f.svc.Submit(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, cefr.None, res.Exam.AwardedLevel)
	assert.False(t, res.Exam.NextStepUnlocked)
	assert.True(t, f.events.seen(EventStep1Locked))

	locked, _ := f.users.IsStep1Locked(ctx, "u1")
	assert.True(t, locked)
	_, err = f.svc.StartExam(ctx, "u1", cefr.Step1)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	// reset lifts the lock and frees the step
	rr, err := f.svc.Reset(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, ResetResult{Deleted: 1, Step: cefr.Step1}, rr)
	locked, _ = f.users.IsStep1Locked(ctx, "u1")
	assert.False(t, locked)
	_, err = f.store.GetExam(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.StartExam(ctx, "u1", cefr.Step1)
	assert.NoError(t, err)
}

func TestAnswerOverwritesPreviousAttempt(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	qid := e.Questions[0]
	require.NoError(t, f.svc.Answer(ctx, e.ID, "u1", qid, "b"))
	require.NoError(t, f.svc.Answer(ctx, e.ID, "u1", qid, "a"))

	got, err := f.store.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []Attempt{{QuestionID: qid, SelectedKey: "a", Correct: true}}, got.Attempts)
}

func TestAnswerValidation(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()
	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	stray := f.putQuestion(t, "Alpha", cefr.A1)

	tests := []struct {
		name     string
		examID   string
		user     string
		question string
		key      string
		want     error
	}{
		{"question outside exam", e.ID, "u1", stray.ID, "a", ErrNotFound},
		{"other user", e.ID, "u2", e.Questions[0], "a", ErrNotFound},
		{"unknown exam", "nope", "u1", e.Questions[0], "a", ErrNotFound},
		{"empty key", e.ID, "u1", e.Questions[0], "", ErrInvalidArgument},
		{"empty question", e.ID, "u1", "", "a", ErrInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.svc.Answer(ctx, tc.examID, tc.user, tc.question, tc.key)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAnswerAfterDeadlineExpiresExam(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.clock.advance(4*time.Minute + time.Second)

	err = f.svc.Answer(ctx, e.ID, "u1", e.Questions[0], "a")
	assert.ErrorIs(t, err, ErrExamExpired)

	got, err := f.store.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Empty(t, got.Attempts)
	assert.True(t, f.events.seen(EventExamExpired))

	// terminal now: further writes are rejected, and the step is open again
	assert.ErrorIs(t, f.svc.Answer(ctx, e.ID, "u1", e.Questions[0], "a"), ErrInvalidState)
	_, err = f.svc.Submit(ctx, e.ID, "u1")
	assert.ErrorIs(t, err, ErrInvalidState)

	next, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	assert.NotEqual(t, e.ID, next.ID)
}

func TestAnswerAtDeadlineIsAccepted(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.clock.advance(4 * time.Minute)
	assert.NoError(t, f.svc.Answer(ctx, e.ID, "u1", e.Questions[0], "a"))
}

func TestSubmitAfterDeadline(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.answerN(t, e, "u1", 4)
	f.clock.advance(time.Hour)

	_, err = f.svc.Submit(ctx, e.ID, "u1")
	assert.ErrorIs(t, err, ErrExamExpired)
	got, err := f.store.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
	assert.Nil(t, got.ScorePercent)
}

func TestAutoSubmitOnExpiry(t *testing.T) {
	st := DefaultSettings()
	st.AutoSubmitOnExpiry = true
	f := newFixture(t, st)
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	require.NoError(t, f.svc.Answer(ctx, e.ID, "u1", e.Questions[0], "a"))
	require.NoError(t, f.svc.Answer(ctx, e.ID, "u1", e.Questions[1], "a"))
	f.clock.advance(time.Hour)

	res, err := f.svc.Submit(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, StatusAutoSubmitted, res.Exam.Status)
	assert.InDelta(t, 50.0, res.Summary.Percent, 1e-9)
	assert.Equal(t, cefr.A2, res.Exam.AwardedLevel)
	assert.False(t, res.Exam.NextStepUnlocked)

	_, err = f.svc.StartExam(ctx, "u1", cefr.Step1)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAutoSubmitWhenRestartingStaleExam(t *testing.T) {
	st := DefaultSettings()
	st.AutoSubmitOnExpiry = true
	f := newFixture(t, st)
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.answerN(t, e, "u1", 4)
	f.clock.advance(time.Hour)

	_, err = f.svc.StartExam(ctx, "u1", cefr.Step1)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	got, err := f.store.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAutoSubmitted, got.Status)
	assert.True(t, got.NextStepUnlocked)
}

func TestDoubleSubmitKeepsFirstResult(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.answerN(t, e, "u1", 2)
	first, err := f.svc.Submit(ctx, e.ID, "u1")
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, e.ID, "u1")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, f.svc.Answer(ctx, e.ID, "u1", e.Questions[3], "a"), ErrInvalidState)

	got, err := f.store.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Exam.ScorePercent, got.ScorePercent)
	assert.Equal(t, first.Exam.Attempts, got.Attempts)
}

func TestSubmitWithoutAnswersScoresZero(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step2)
	require.NoError(t, err)
	res, err := f.svc.Submit(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Summary.Percent)
	assert.Equal(t, cefr.None, res.Exam.AwardedLevel)
	// the step-1 lock is a step-1 rule only
	locked, _ := f.users.IsStep1Locked(ctx, "u1")
	assert.False(t, locked)
}

func TestConcurrentAnswersAreAllKept(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, qid := range e.Questions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.Answer(ctx, e.ID, "u1", qid, "a"))
		}()
	}
	wg.Wait()

	got, err := f.store.GetExam(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attempts, len(e.Questions))
}

func TestConcurrentStartsCreateOneExam(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
			if assert.NoError(t, err) {
				ids[i] = e.ID
			}
		}()
	}
	wg.Wait()
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestPlanCreatesNothing(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	p, err := f.svc.Plan(ctx, "u1", cefr.Step2)
	require.NoError(t, err)
	assert.Equal(t, 4, p.QuestionCount)
	assert.Equal(t, 60, p.SecondsPerQuestion)
	require.NotNil(t, p.UnlockNextAt)
	assert.Equal(t, 75.0, *p.UnlockNextAt)
	require.NotNil(t, p.PrevUnlockAt)
	assert.Equal(t, 75.0, *p.PrevUnlockAt)

	p3, err := f.svc.Plan(ctx, "u1", cefr.Step3)
	require.NoError(t, err)
	assert.Nil(t, p3.UnlockNextAt)

	all, err := f.store.ListExams(ctx, ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPlanCapsAtEligibleQuestions(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.putQuestion(t, "Alpha", cefr.C1)

	p, err := f.svc.Plan(context.Background(), "u1", cefr.Step3)
	require.NoError(t, err)
	assert.Equal(t, 1, p.QuestionCount)
	p1, err := f.svc.Plan(context.Background(), "u1", cefr.Step1)
	require.NoError(t, err)
	assert.Equal(t, 0, p1.QuestionCount)
	assert.Nil(t, p1.PrevUnlockAt)
}

func TestResetRejectsInProgressExam(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	_, err = f.svc.Reset(ctx, e.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Reset(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetExamViewHidesKeys(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.clock.advance(90*time.Second + 500*time.Millisecond)

	v, err := f.svc.GetExamView(ctx, e.ID, "u1")
	require.NoError(t, err)
	require.Len(t, v.QuestionItems, 4)
	for i, q := range v.QuestionItems {
		assert.Equal(t, e.Questions[i], q.ID)
		assert.Empty(t, q.CorrectKey)
	}
	assert.Equal(t, int64(149), v.TimeLeft)

	f.clock.advance(time.Hour)
	v, err = f.svc.GetExamView(ctx, e.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v.TimeLeft)
	assert.Equal(t, StatusInProgress, v.Status, "reading never expires the exam")

	_, err = f.svc.GetExamView(ctx, e.ID, "u2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAllReportsTotals(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	f.answerN(t, e, "u1", 1)
	f.clock.advance(time.Second)
	_, err = f.svc.StartExam(ctx, "u2", cefr.Step1)
	require.NoError(t, err)

	rows, err := f.svc.ListAll(ctx, ListOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u2", rows[0].UserID)
	assert.Equal(t, "u1", rows[1].UserID)
	assert.Equal(t, 4, rows[1].Total)
	assert.Equal(t, 1, rows[1].Correct)
	assert.InDelta(t, 25.0, rows[1].Percent, 1e-9)

	mine, err := f.svc.ListMine(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, e.ID, mine[0].ID)
}

func TestNewServiceValidatesDeps(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)

	s := NewInMemoryStore()
	_, err = NewService(Deps{
		Exams: s, Questions: s, Competencies: s,
		Policies: policy.NewInMemoryStore(), Users: newFakeUsers(),
	}, WithSettings(Settings{}))
	assert.Error(t, err)
}

type recordingLocker struct {
	inner Locker
	mu    sync.Mutex
	keys  []string
}

func (r *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	r.mu.Lock()
	r.keys = append(r.keys, key)
	r.mu.Unlock()
	return r.inner.Lock(ctx, key)
}

func (r *recordingLocker) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.keys
	r.keys = nil
	return out
}

func TestResetLocksStartBeforeExam(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx := context.Background()
	rec := &recordingLocker{inner: lock.NewLocal()}
	opts := []ServiceOption{WithSettings(DefaultSettings()), WithClock(f.clock.now)}
	svc, err := NewService(Deps{
		Exams: f.store, Questions: f.store, Competencies: f.store,
		Policies: policy.NewInMemoryStore(), Users: f.users, Locks: rec,
	}, opts...)
	require.NoError(t, err)

	e, err := svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, e.ID, "u1")
	require.NoError(t, err)
	rec.take()

	_, err = svc.Reset(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{startKey("u1", cefr.Step1), examKey(e.ID)}, rec.take())
}

func TestResetRacingStartSettlesCleanly(t *testing.T) {
	f := newFixture(t, DefaultSettings())
	f.seedBank(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e, err := f.svc.StartExam(ctx, "u1", cefr.Step1)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, e.ID, "u1") // zero answers: locks step 1
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		resetErr error
		startErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, resetErr = f.svc.Reset(ctx, e.ID)
	}()
	go func() {
		defer wg.Done()
		_, startErr = f.svc.StartExam(ctx, "u1", cefr.Step1)
	}()
	wg.Wait()

	require.NoError(t, resetErr)
	if startErr != nil {
		// start ran first and saw the lock
		assert.ErrorIs(t, startErr, ErrPermissionDenied)
	}
	locked, _ := f.users.IsStep1Locked(ctx, "u1")
	assert.False(t, locked)
	_, err = f.svc.StartExam(ctx, "u1", cefr.Step1)
	assert.NoError(t, err)
}
