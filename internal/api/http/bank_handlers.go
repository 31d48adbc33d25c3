package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/logger"
)

// GET /questions?level=&competency=&active=1&limit=&offset=
// Answer keys are included: this is the administration view.
func ListQuestionsHandler(repo exam.QuestionRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lv, err := cefr.ParseLevel(q.Get("level"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		list, err := repo.ListQuestions(r.Context(), exam.QuestionListOpts{
			Level:      lv,
			Competency: strings.TrimSpace(q.Get("competency")),
			ActiveOnly: q.Get("active") == "1" || q.Get("active") == "true",
			Limit:      parseIntDefault(q.Get("limit"), 100),
			Offset:     parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /questions  (one question, or a JSON array of them)
func CreateQuestionsHandler(repo exam.QuestionRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			badRequest(w, "bad json")
			return
		}
		var qs []exam.Question
		if t := strings.TrimSpace(string(raw)); strings.HasPrefix(t, "[") {
			if err := json.Unmarshal(raw, &qs); err != nil {
				badRequest(w, "bad json")
				return
			}
		} else {
			var one exam.Question
			if err := json.Unmarshal(raw, &one); err != nil {
				badRequest(w, "bad json")
				return
			}
			qs = []exam.Question{one}
		}
		out := make([]exam.Question, 0, len(qs))
		for _, q := range qs {
			saved, err := repo.PutQuestion(r.Context(), q)
			if err != nil {
				writeError(w, log, err)
				return
			}
			out = append(out, saved)
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// GET /competencies
func ListCompetenciesHandler(repo exam.CompetencyRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := repo.ListCompetencies(r.Context())
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /competencies  { "name": "...", "description": "...", "active": true }
func PutCompetencyHandler(repo exam.CompetencyRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c exam.Competency
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			badRequest(w, "bad json")
			return
		}
		saved, err := repo.PutCompetency(r.Context(), c)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

// POST /seed/{what}  what = competencies | questions | all
func SeedHandler(comps exam.CompetencyRepo, qs exam.QuestionRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		what := chi.URLParam(r, "what")
		out := map[string]int{}
		if what == "competencies" || what == "all" {
			n, err := exam.SeedCompetenciesIfEmpty(r.Context(), comps)
			if err != nil {
				writeError(w, log, err)
				return
			}
			out["competencies"] = n
		}
		if what == "questions" || what == "all" {
			n, err := exam.SeedQuestionsIfEmpty(r.Context(), qs)
			if err != nil {
				writeError(w, log, err)
				return
			}
			out["questions"] = n
		}
		if len(out) == 0 {
			badRequest(w, "unknown seed target: "+what)
			return
		}
		log.Info("seed run", "target", what, "competencies", out["competencies"], "questions", out["questions"])
		writeJSON(w, http.StatusOK, out)
	}
}
