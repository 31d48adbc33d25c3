package exam

import "errors"

var (
	ErrPermissionDenied = errors.New("step 1 retake not allowed")
	ErrAlreadyCompleted = errors.New("step already completed")
	ErrNotFound         = errors.New("not found")
	ErrExamExpired      = errors.New("exam expired")
	ErrInvalidState     = errors.New("exam not in progress")
	ErrInvalidArgument  = errors.New("invalid argument")
	// ErrNoQuestions guards the scorer's divisor: an exam never has zero questions.
	ErrNoQuestions = errors.New("no questions available")
)
