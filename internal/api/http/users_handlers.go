package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	authmw "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

// POST /users/bulk
// Accepts either multipart file= (CSV or JSON) or a raw JSON array body.
func BulkUpsertUsersHandler(store users.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rows []users.Row
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				badRequest(w, "file required")
				return
			}
			defer f.Close()
			// sniff CSV vs JSON by first byte
			buf := make([]byte, 1)
			if _, err := f.Read(buf); err != nil {
				badRequest(w, "empty file")
				return
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				writeError(w, log, err)
				return
			}
			if buf[0] == '[' {
				if err := json.NewDecoder(f).Decode(&rows); err != nil {
					badRequest(w, "bad json")
					return
				}
			} else {
				rs, err := parseCSV(f)
				if err != nil {
					badRequest(w, "bad csv: "+err.Error())
					return
				}
				rows = rs
			}
		} else if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			badRequest(w, "expected JSON array or multipart file")
			return
		}
		if len(rows) == 0 {
			writeJSON(w, http.StatusOK, users.UpsertResult{})
			return
		}
		res, err := store.BulkUpsert(r.Context(), rows)
		if err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("users upserted", "inserted", res.Inserted, "updated", res.Updated)
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /users?role=STUDENT
func ListUsersHandler(store users.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var role users.Role
		if s := r.URL.Query().Get("role"); s != "" {
			rr, err := users.ParseRole(s)
			if err != nil {
				writeError(w, log, err)
				return
			}
			role = rr
		}
		list, err := store.List(r.Context(), role)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /users/{userID}/unlock-step1
func UnlockStep1Handler(store users.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		if err := store.SetStep1Locked(r.Context(), id, nil); err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("step 1 unlocked", "user_id", id, "actor", authmw.SubjectFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseCSV(r io.Reader) ([]users.Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := idx["username"]; !ok {
		return nil, errors.New("missing column: username")
	}
	col := func(rec []string, name string) string {
		if i, ok := idx[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}
	var rows []users.Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, users.Row{
			ID:       col(rec, "id"),
			Username: col(rec, "username"),
			Name:     col(rec, "name"),
			Email:    col(rec, "email"),
			Role:     col(rec, "role"),
			Password: col(rec, "password"),
		})
	}
	return rows, nil
}
