package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/lock"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/policy"
)

type Settings struct {
	SecondsPerQuestion   int
	CompetenciesPerLevel int
	QuestionsPerExam     int
	// AutoSubmitOnExpiry finalizes an expired exam with what was answered
	// (AUTO_SUBMITTED) instead of discarding it (EXPIRED).
	AutoSubmitOnExpiry bool
}

func DefaultSettings() Settings {
	return Settings{
		SecondsPerQuestion:   60,
		CompetenciesPerLevel: 2,
		QuestionsPerExam:     4,
	}
}

type Deps struct {
	Exams        ExamStore
	Questions    QuestionRepo
	Competencies CompetencyRepo
	Policies     policy.Store
	Users        UserStore

	Locks  Locker        // optional, defaults to an in-process keyed mutex
	Events EventRecorder // optional
	Log    *logger.Logger
}

type ServiceOption func(*Service)

func WithSettings(st Settings) ServiceOption { return func(s *Service) { s.settings = st } }
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// Service is the exam progression engine. Every state change on an exam
// happens under the exam's lock and rewrites the whole exam document.
type Service struct {
	exams        ExamStore
	questions    QuestionRepo
	competencies CompetencyRepo
	policies     policy.Store
	users        UserStore
	locks        Locker
	events       EventRecorder
	log          *logger.Logger

	settings Settings
	now      func() time.Time
}

func NewService(d Deps, opts ...ServiceOption) (*Service, error) {
	if d.Exams == nil || d.Questions == nil || d.Competencies == nil || d.Policies == nil || d.Users == nil {
		return nil, errors.New("exam: missing store dependency")
	}
	s := &Service{
		exams:        d.Exams,
		questions:    d.Questions,
		competencies: d.Competencies,
		policies:     d.Policies,
		users:        d.Users,
		locks:        d.Locks,
		events:       d.Events,
		log:          d.Log,
		settings:     DefaultSettings(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.locks == nil {
		s.locks = lock.NewLocal()
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	s.log = s.log.With("service", "ExamService")
	if s.settings.SecondsPerQuestion <= 0 || s.settings.CompetenciesPerLevel <= 0 || s.settings.QuestionsPerExam <= 0 {
		return nil, fmt.Errorf("exam: invalid settings %+v", s.settings)
	}
	return s, nil
}

func (s *Service) Settings() Settings { return s.settings }

func examKey(id string) string { return "exam:" + id }

func startKey(userID string, step cefr.Step) string {
	return fmt.Sprintf("start:%s:%d", userID, step)
}

// withExam loads the caller's exam under its lock and hands it to fn with the
// clock reading taken after the lock was acquired.
func (s *Service) withExam(ctx context.Context, examID, userID string, fn func(e *Exam, now time.Time) error) error {
	if examID == "" {
		return ErrNotFound
	}
	unlock, err := s.locks.Lock(ctx, examKey(examID))
	if err != nil {
		return fmt.Errorf("lock exam: %w", err)
	}
	defer unlock()

	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return err
	}
	if e.UserID == "" || e.UserID != userID {
		return ErrNotFound
	}
	return fn(&e, s.now())
}

// expire persists the lazy expiry of an in-progress exam: EXPIRED by default,
// or a scored AUTO_SUBMITTED finalization when enabled.
func (s *Service) expire(ctx context.Context, e *Exam, now time.Time) error {
	if s.settings.AutoSubmitOnExpiry {
		if _, err := s.finalize(ctx, e, now, StatusAutoSubmitted); err != nil {
			return err
		}
	} else {
		e.Status = StatusExpired
		e.UpdatedAt = now
		if err := s.exams.UpdateExam(ctx, *e); err != nil {
			return fmt.Errorf("expire exam: %w", err)
		}
	}
	s.record(ctx, EventExamExpired, e.ID, map[string]any{
		"user_id": e.UserID, "step": e.Step, "status": e.Status,
	})
	s.log.Info("exam expired", "exam_id", e.ID, "user_id", e.UserID, "status", e.Status)
	return nil
}

// record appends to the audit log. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, typ, key string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, typ, key, data); err != nil {
		s.log.Warn("event record failed", "type", typ, "key", key, "error", err)
	}
}
