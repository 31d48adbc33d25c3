package exam

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Answer records or replaces the caller's answer to one question of an
// in-progress exam. Writing after the deadline flips the exam to its expired
// state and fails with ErrExamExpired.
func (s *Service) Answer(ctx context.Context, examID, userID, questionID, selectedKey string) error {
	questionID = strings.TrimSpace(questionID)
	if questionID == "" || selectedKey == "" {
		return ErrInvalidArgument
	}
	return s.withExam(ctx, examID, userID, func(e *Exam, now time.Time) error {
		if e.Status != StatusInProgress {
			return ErrInvalidState
		}
		if e.expiredAt(now) {
			if err := s.expire(ctx, e, now); err != nil {
				return err
			}
			return ErrExamExpired
		}
		if !e.hasQuestion(questionID) {
			return fmt.Errorf("question %s not in exam: %w", questionID, ErrNotFound)
		}
		q, err := s.questions.FindByID(ctx, questionID)
		if err != nil {
			return err
		}

		e.upsertAttempt(Attempt{
			QuestionID:  q.ID,
			SelectedKey: selectedKey,
			Correct:     q.CorrectKey == selectedKey,
		})
		e.UpdatedAt = now
		if err := s.exams.UpdateExam(ctx, *e); err != nil {
			return fmt.Errorf("save answer: %w", err)
		}
		return nil
	})
}
