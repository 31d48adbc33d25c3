package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/policy"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps core errors onto HTTP. Anything unknown is a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, exam.ErrPermissionDenied):
		return http.StatusForbidden, "PERMISSION_DENIED"
	case errors.Is(err, exam.ErrAlreadyCompleted):
		return http.StatusConflict, "ALREADY_COMPLETED"
	case errors.Is(err, exam.ErrNotFound), errors.Is(err, users.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, exam.ErrExamExpired):
		return http.StatusGone, "EXAM_EXPIRED"
	case errors.Is(err, exam.ErrInvalidState):
		return http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, exam.ErrInvalidArgument), errors.Is(err, users.ErrInvalid), errors.Is(err, policy.ErrInvalid):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, exam.ErrNoQuestions):
		return http.StatusUnprocessableEntity, "NO_QUESTIONS"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "INVALID_ARGUMENT"})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
