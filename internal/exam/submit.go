package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/policy"
)

// Submit scores the caller's in-progress exam against the live policy and
// finalizes it. A second submit fails with ErrInvalidState.
func (s *Service) Submit(ctx context.Context, examID, userID string) (SubmitResult, error) {
	var res SubmitResult
	err := s.withExam(ctx, examID, userID, func(e *Exam, now time.Time) error {
		if e.Status != StatusInProgress {
			return ErrInvalidState
		}
		status := StatusSubmitted
		if e.expiredAt(now) {
			if !s.settings.AutoSubmitOnExpiry {
				if err := s.expire(ctx, e, now); err != nil {
					return err
				}
				return ErrExamExpired
			}
			status = StatusAutoSubmitted
		}
		r, err := s.finalize(ctx, e, now, status)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// finalize scores e, applies the policy decision and the step-1 lock side
// effect, and persists the result. The caller holds the exam lock.
func (s *Service) finalize(ctx context.Context, e *Exam, now time.Time, status Status) (SubmitResult, error) {
	score, err := ScorePercent(e.Attempts, len(e.Questions))
	if err != nil {
		return SubmitResult{}, err
	}
	cfg, err := policy.Current(ctx, s.policies)
	if err != nil {
		return SubmitResult{}, err
	}
	d, err := policy.Evaluate(e.Step, score, cfg)
	if err != nil {
		return SubmitResult{}, err
	}

	e.Status = status
	e.SubmittedAt = &now
	e.ScorePercent = &score
	e.AwardedLevel = mergeAward(e.AwardedLevel, d)
	e.NextStepUnlocked = d.NextStepUnlocked
	e.UpdatedAt = now
	if err := s.exams.UpdateExam(ctx, *e); err != nil {
		return SubmitResult{}, fmt.Errorf("save submission: %w", err)
	}

	if e.Step == cefr.Step1 && d.LockStep1 {
		if err := s.users.SetStep1Locked(ctx, e.UserID, &now); err != nil {
			return SubmitResult{}, fmt.Errorf("lock step 1: %w", err)
		}
		s.record(ctx, EventStep1Locked, e.UserID, map[string]any{"exam_id": e.ID, "score": score})
	}

	sum := Summary{
		Total:            len(e.Questions),
		Correct:          e.correctCount(),
		Percent:          score,
		AwardedLevel:     e.AwardedLevel,
		NextStepUnlocked: e.NextStepUnlocked,
	}
	s.record(ctx, EventExamSubmitted, e.ID, map[string]any{
		"user_id": e.UserID, "step": e.Step, "status": status, "summary": sum,
	})
	s.log.Info("exam finalized",
		"exam_id", e.ID, "user_id", e.UserID, "step", e.Step, "status", status,
		"score", score, "awarded", e.AwardedLevel, "unlocked", e.NextStepUnlocked, "locked", d.LockStep1)
	return SubmitResult{Exam: e.clone(), Summary: sum}, nil
}

// mergeAward keeps the exam's previous award when the policy grants none.
func mergeAward(prev cefr.Level, d policy.Decision) cefr.Level {
	if d.HasAward() {
		return d.Award
	}
	return prev
}
