package http

import (
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-assess/internal/logger"
	syncx "github.com/mind-engage/mindengage-assess/internal/sync"
)

// GET /events?after=0&type=exam.submitted&limit=100
func ListEventsHandler(repo *syncx.EventRepo, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var after int64
		if s := q.Get("after"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				badRequest(w, "bad after")
				return
			}
			after = v
		}
		list, err := repo.Since(r.Context(), after, q.Get("type"), parseIntDefault(q.Get("limit"), 100))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
