package exam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/policy"
)

// Used when no competency has been configured yet.
var fallbackCompetencies = []string{"Computer Basics", "Operating Systems"}

// StartExam builds a new in-progress exam for the user's step, or resumes the
// live one if it exists.
func (s *Service) StartExam(ctx context.Context, userID string, step cefr.Step) (Exam, error) {
	if userID == "" || !step.Valid() {
		return Exam{}, ErrInvalidArgument
	}
	unlock, err := s.locks.Lock(ctx, startKey(userID, step))
	if err != nil {
		return Exam{}, fmt.Errorf("lock start: %w", err)
	}
	defer unlock()

	if step == cefr.Step1 {
		locked, err := s.users.IsStep1Locked(ctx, userID)
		if err != nil {
			return Exam{}, err
		}
		if locked {
			return Exam{}, ErrPermissionDenied
		}
	}

	existing, err := s.exams.ListExams(ctx, ListOpts{UserID: userID, Step: step})
	if err != nil {
		return Exam{}, err
	}
	for _, e := range existing {
		if e.Status.Completed() {
			return Exam{}, ErrAlreadyCompleted
		}
	}
	for _, e := range existing {
		if e.Status != StatusInProgress {
			continue
		}
		live, err := s.settleInProgress(ctx, e.ID, userID)
		if err != nil {
			return Exam{}, err
		}
		if live != nil {
			return *live, nil
		}
	}

	// an auto-submitted stale exam now counts as a completion
	if s.settings.AutoSubmitOnExpiry {
		again, err := s.exams.ListExams(ctx, ListOpts{UserID: userID, Step: step})
		if err != nil {
			return Exam{}, err
		}
		for _, e := range again {
			if e.Status.Completed() {
				return Exam{}, ErrAlreadyCompleted
			}
		}
	}

	picked, err := s.selectQuestions(ctx, step)
	if err != nil {
		return Exam{}, err
	}
	if len(picked) == 0 {
		return Exam{}, ErrNoQuestions
	}

	now := s.now()
	ids := make([]string, len(picked))
	for i, q := range picked {
		ids[i] = q.ID
	}
	perQ := time.Duration(s.settings.SecondsPerQuestion) * time.Second
	e := Exam{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      step,
		Levels:    step.Levels(),
		Status:    StatusInProgress,
		StartedAt: now,
		ExpiresAt: now.Add(time.Duration(len(ids)) * perQ),
		Questions: ids,
		Attempts:  []Attempt{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.exams.CreateExam(ctx, e); err != nil {
		return Exam{}, fmt.Errorf("create exam: %w", err)
	}
	s.record(ctx, EventExamStarted, e.ID, map[string]any{
		"user_id": userID, "step": step, "questions": len(ids), "expires_at": e.ExpiresAt,
	})
	s.log.Info("exam started", "exam_id", e.ID, "user_id", userID, "step", step, "questions", len(ids))
	return e, nil
}

// settleInProgress returns the exam if it is still live, or expires it and
// returns nil.
func (s *Service) settleInProgress(ctx context.Context, examID, userID string) (*Exam, error) {
	var live *Exam
	err := s.withExam(ctx, examID, userID, func(e *Exam, now time.Time) error {
		if e.Status != StatusInProgress {
			return nil
		}
		if !e.expiredAt(now) {
			live = e
			return nil
		}
		return s.expire(ctx, e, now)
	})
	return live, err
}

// selectQuestions picks, for each of the step's levels, the lowest-id active
// question of each of the first N active competencies, then tops up with a
// random sample from the step's levels until the target size is reached or
// the pool runs dry.
func (s *Service) selectQuestions(ctx context.Context, step cefr.Step) ([]Question, error) {
	levels := step.Levels()
	target := s.settings.QuestionsPerExam
	comps, err := s.activeCompetencyNames(ctx, s.settings.CompetenciesPerLevel)
	if err != nil {
		return nil, err
	}

	picked := make([]Question, 0, target)
	seen := map[string]bool{}
pick:
	for _, lv := range levels {
		for _, c := range comps {
			if len(picked) >= target {
				break pick
			}
			q, err := s.questions.FindActiveByLevelAndCompetency(ctx, lv, c)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("select %s/%s: %w", lv, c, err)
			}
			if seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			picked = append(picked, q)
		}
	}

	if missing := target - len(picked); missing > 0 {
		exclude := make([]string, 0, len(picked))
		for _, q := range picked {
			exclude = append(exclude, q.ID)
		}
		more, err := s.questions.SampleActiveByLevels(ctx, levels, exclude, missing)
		if err != nil {
			return nil, fmt.Errorf("sample questions: %w", err)
		}
		for _, q := range more {
			if len(picked) >= target {
				break
			}
			if seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			picked = append(picked, q)
		}
	}
	return picked, nil
}

func (s *Service) activeCompetencyNames(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.competencies.ListActive(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list competencies: %w", err)
	}
	if len(rows) == 0 {
		n := limit
		if n > len(fallbackCompetencies) {
			n = len(fallbackCompetencies)
		}
		return append([]string(nil), fallbackCompetencies[:n]...), nil
	}
	names := make([]string, len(rows))
	for i, c := range rows {
		names[i] = c.Name
	}
	return names, nil
}

// Plan previews the step: how many questions an exam would get, the clock,
// and the cutoffs that unlock this and the next step.
func (s *Service) Plan(ctx context.Context, userID string, step cefr.Step) (Plan, error) {
	if userID == "" || !step.Valid() {
		return Plan{}, ErrInvalidArgument
	}
	eligible, err := s.questions.CountActiveByLevels(ctx, step.Levels())
	if err != nil {
		return Plan{}, err
	}
	cfg, err := policy.Current(ctx, s.policies)
	if err != nil {
		return Plan{}, err
	}
	n := s.settings.QuestionsPerExam
	if eligible < n {
		n = eligible
	}
	p := Plan{
		QuestionCount:      n,
		SecondsPerQuestion: s.settings.SecondsPerQuestion,
		UnlockNextAt:       cfg.UnlockCutoff(step),
	}
	if step > cefr.Step1 {
		p.PrevUnlockAt = cfg.UnlockCutoff(step - 1)
	}
	return p, nil
}
