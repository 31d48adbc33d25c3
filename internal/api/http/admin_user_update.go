package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

type updateUserRoleReq struct {
	Role string `json:"role"`
}

// PUT /users/{userID}/role
func AdminUpdateUserRoleHandler(store users.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		var req updateUserRoleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		role, err := users.ParseRole(req.Role)
		if err != nil || req.Role == "" {
			badRequest(w, "invalid role")
			return
		}

		cur, err := store.Get(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		// never demote the last admin
		if cur.Role == users.RoleAdmin && role != users.RoleAdmin {
			n, err := store.CountByRole(r.Context(), users.RoleAdmin)
			if err != nil {
				writeError(w, log, err)
				return
			}
			if n <= 1 {
				badRequest(w, "cannot demote the last admin")
				return
			}
		}
		if err := store.SetRole(r.Context(), id, role); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
