package exam

import (
	"context"
	"fmt"
	"math"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
)

// GetExamView returns the caller's exam with its questions (answer keys
// stripped) and the seconds left. Reading never changes the exam.
func (s *Service) GetExamView(ctx context.Context, examID, userID string) (View, error) {
	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return View{}, err
	}
	if e.UserID == "" || e.UserID != userID {
		return View{}, ErrNotFound
	}
	qs, err := s.questions.FindByIDs(ctx, e.Questions)
	if err != nil {
		return View{}, err
	}
	byID := make(map[string]Question, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}
	items := make([]Question, 0, len(e.Questions))
	for _, id := range e.Questions {
		if q, ok := byID[id]; ok {
			items = append(items, q.Public())
		}
	}
	left := int64(math.Floor(e.ExpiresAt.Sub(s.now()).Seconds()))
	if left < 0 {
		left = 0
	}
	return View{Exam: e, QuestionItems: items, TimeLeft: left}, nil
}

func (s *Service) ListMine(ctx context.Context, userID string) ([]Exam, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.exams.ListExams(ctx, ListOpts{UserID: userID})
}

// ListAll is the supervisor overview across users.
func (s *Service) ListAll(ctx context.Context, opts ListOpts) ([]Overview, error) {
	rows, err := s.exams.ListExams(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]Overview, 0, len(rows))
	for _, e := range rows {
		total := len(e.Questions)
		correct := e.correctCount()
		pct := 0.0
		if total > 0 {
			pct = float64(correct) / float64(total) * 100
		}
		out = append(out, Overview{
			ID:           e.ID,
			UserID:       e.UserID,
			Step:         e.Step,
			Status:       e.Status,
			Total:        total,
			Correct:      correct,
			Percent:      pct,
			AwardedLevel: e.AwardedLevel,
			CreatedAt:    e.CreatedAt,
			UpdatedAt:    e.UpdatedAt,
		})
	}
	return out, nil
}

// Reset deletes a finished exam so the user can take the step again. Resetting
// a step-1 exam also lifts the user's step-1 lock.
func (s *Service) Reset(ctx context.Context, examID string) (ResetResult, error) {
	if examID == "" {
		return ResetResult{}, ErrNotFound
	}
	// owner and step never change, so they can be read before locking
	peek, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return ResetResult{}, err
	}
	// same order as StartExam: start lock first, then the exam lock
	unlockStart, err := s.locks.Lock(ctx, startKey(peek.UserID, peek.Step))
	if err != nil {
		return ResetResult{}, fmt.Errorf("lock start: %w", err)
	}
	defer unlockStart()
	unlock, err := s.locks.Lock(ctx, examKey(examID))
	if err != nil {
		return ResetResult{}, fmt.Errorf("lock exam: %w", err)
	}
	defer unlock()

	e, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return ResetResult{}, err
	}
	if e.Status == StatusInProgress {
		return ResetResult{}, ErrInvalidState
	}
	if e.Step == cefr.Step1 && e.UserID != "" {
		if err := s.users.SetStep1Locked(ctx, e.UserID, nil); err != nil {
			return ResetResult{}, fmt.Errorf("clear step 1 lock: %w", err)
		}
	}
	if err := s.exams.DeleteExam(ctx, examID); err != nil {
		return ResetResult{}, err
	}
	s.record(ctx, EventExamReset, e.ID, map[string]any{"user_id": e.UserID, "step": e.Step, "status": e.Status})
	s.log.Info("exam reset", "exam_id", e.ID, "user_id", e.UserID, "step", e.Step)
	return ResetResult{Deleted: 1, Step: e.Step}, nil
}
