package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/logger"
)

func stepParam(r *http.Request) (cefr.Step, error) {
	st, err := cefr.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		return 0, exam.ErrInvalidArgument
	}
	return st, nil
}

// POST /exams/step/{step}/start
func StartExamHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, err := stepParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		e, err := svc.StartExam(r.Context(), authmw.SubjectFromContext(r.Context()), step)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// GET /exams/step/{step}/plan
func PlanHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		step, err := stepParam(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		p, err := svc.Plan(r.Context(), authmw.SubjectFromContext(r.Context()), step)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// POST /exams/{examID}/answer  { "question_id": "...", "selected_key": "..." }
func AnswerHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID  string `json:"question_id"`
			SelectedKey string `json:"selected_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		err := svc.Answer(r.Context(), chi.URLParam(r, "examID"), authmw.SubjectFromContext(r.Context()),
			req.QuestionID, req.SelectedKey)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// POST /exams/{examID}/submit
func SubmitHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Submit(r.Context(), chi.URLParam(r, "examID"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /exams/{examID}
func GetExamHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.GetExamView(r.Context(), chi.URLParam(r, "examID"), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// GET /exams
func ListMyExamsHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListMine(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /exams/all?user_id=&step=&status=&limit=50&offset=0
func ListAllExamsHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := exam.ListOpts{
			UserID: strings.TrimSpace(q.Get("user_id")),
			Status: exam.Status(strings.ToUpper(strings.TrimSpace(q.Get("status")))),
			Limit:  parseIntDefault(q.Get("limit"), 50),
			Offset: parseIntDefault(q.Get("offset"), 0),
		}
		if s := q.Get("step"); s != "" {
			st, err := cefr.ParseStep(s)
			if err != nil {
				badRequest(w, err.Error())
				return
			}
			opts.Step = st
		}
		rows, err := svc.ListAll(r.Context(), opts)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// POST /exams/{examID}/reset
func ResetExamHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Reset(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("exam reset by supervisor", "exam_id", chi.URLParam(r, "examID"),
			"actor", authmw.SubjectFromContext(r.Context()))
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /progress
func ProgressHandler(svc *exam.Service, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Progress(r.Context(), authmw.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
