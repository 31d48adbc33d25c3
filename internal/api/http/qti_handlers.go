package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/cefr"
	"github.com/mind-engage/mindengage-assess/internal/exam"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/qti"
	"github.com/mind-engage/mindengage-assess/internal/qti/export"
	"github.com/mind-engage/mindengage-assess/internal/qti/parser"
)

const maxPackage = 32 << 20

// POST /questions/import/qti?competency=&level=  (multipart: file=package.zip)
// competency and level apply to items whose manifest entry does not carry them.
func ImportQTIHandler(repo exam.QuestionRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lv, err := cefr.ParseLevel(r.URL.Query().Get("level"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "file required")
			return
		}
		defer f.Close()

		b, err := io.ReadAll(io.LimitReader(f, maxPackage+1))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if len(b) > maxPackage {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "package too large", Code: "INVALID_ARGUMENT"})
			return
		}
		pkg, err := parser.Open(bytes.NewReader(b), int64(len(b)))
		if err != nil {
			badRequest(w, "package: "+err.Error())
			return
		}

		qs, skipped := qti.ToQuestions(pkg, qti.Defaults{
			Competency: strings.TrimSpace(r.URL.Query().Get("competency")),
			Level:      lv,
		})
		ids := make([]string, 0, len(qs))
		for _, q := range qs {
			saved, err := repo.PutQuestion(r.Context(), q)
			if err != nil {
				skipped = append(skipped, qti.Skipped{Href: q.ID, Reason: err.Error()})
				continue
			}
			ids = append(ids, saved.ID)
		}
		if skipped == nil {
			skipped = []qti.Skipped{}
		}
		log.Info("qti import", "filename", hdr.Filename, "imported", len(ids), "skipped", len(skipped))
		writeJSON(w, http.StatusOK, map[string]any{"imported": ids, "skipped": skipped})
	}
}

// GET /questions/export/qti?competency=&level=&active=1
func ExportQTIHandler(repo exam.QuestionRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		lv, err := cefr.ParseLevel(q.Get("level"))
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		qs, err := repo.ListQuestions(r.Context(), exam.QuestionListOpts{
			Level:      lv,
			Competency: strings.TrimSpace(q.Get("competency")),
			ActiveOnly: q.Get("active") == "1" || q.Get("active") == "true",
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		pkg, err := export.BuildPackage(qs)
		if err != nil {
			writeError(w, log, err)
			return
		}
		name := "question-bank.zip"
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		http.ServeContent(w, r, name, time.Now(), bytes.NewReader(pkg))
	}
}
