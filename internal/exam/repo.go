package exam

import (
	"context"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

type ListOpts struct {
	UserID string
	Step   cefr.Step // 0 = any
	Status Status    // "" = any
	Limit  int
	Offset int
}

type QuestionListOpts struct {
	Level      cefr.Level
	Competency string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// ExamStore persists exams as whole documents. Listings are newest first.
type ExamStore interface {
	CreateExam(ctx context.Context, e Exam) error
	GetExam(ctx context.Context, id string) (Exam, error)
	UpdateExam(ctx context.Context, e Exam) error
	DeleteExam(ctx context.Context, id string) error
	ListExams(ctx context.Context, opts ListOpts) ([]Exam, error)
}

type QuestionRepo interface {
	// FindActiveByLevelAndCompetency returns the active match with the lowest id,
	// or ErrNotFound.
	FindActiveByLevelAndCompetency(ctx context.Context, level cefr.Level, competency string) (Question, error)
	// SampleActiveByLevels returns up to count random active questions at the
	// given levels, skipping excludeIDs.
	SampleActiveByLevels(ctx context.Context, levels []cefr.Level, excludeIDs []string, count int) ([]Question, error)
	FindByID(ctx context.Context, id string) (Question, error)
	FindByIDs(ctx context.Context, ids []string) ([]Question, error)
	CountActiveByLevels(ctx context.Context, levels []cefr.Level) (int, error)
	PutQuestion(ctx context.Context, q Question) (Question, error)
	ListQuestions(ctx context.Context, opts QuestionListOpts) ([]Question, error)
}

type CompetencyRepo interface {
	// ListActive returns at most limit active competencies ordered by name.
	ListActive(ctx context.Context, limit int) ([]Competency, error)
	ListCompetencies(ctx context.Context) ([]Competency, error)
	// PutCompetency upserts by name.
	PutCompetency(ctx context.Context, c Competency) (Competency, error)
}

// UserStore is the slice of the user record the exam flow reads and writes.
type UserStore interface {
	IsStep1Locked(ctx context.Context, userID string) (bool, error)
	// SetStep1Locked sets the lock timestamp; nil clears it.
	SetStep1Locked(ctx context.Context, userID string, at *time.Time) error
}

// Locker serialises work on one key (an exam id, or a user+step pair).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventRecorder receives lifecycle events for the audit log.
type EventRecorder interface {
	Record(ctx context.Context, typ, key string, data any) error
}

const (
	EventExamStarted   = "exam.started"
	EventExamExpired   = "exam.expired"
	EventExamSubmitted = "exam.submitted"
	EventExamReset     = "exam.reset"
	EventStep1Locked   = "user.step1_locked"
)
