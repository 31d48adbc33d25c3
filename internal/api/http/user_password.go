package http

import (
	"encoding/json"
	"net/http"

	authmw "github.com/mind-engage/mindengage-assess/internal/auth/middleware"
	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// POST /users/change-password
func ChangePasswordHandler(store users.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := authmw.SubjectFromContext(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if req.NewPassword == "" {
			badRequest(w, "new password required")
			return
		}
		u, err := store.Get(r.Context(), userID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if !users.CheckPassword(u.PasswordHash, req.OldPassword) {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "incorrect old password", Code: "PERMISSION_DENIED"})
			return
		}
		hash, err := users.HashPassword(req.NewPassword)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.SetPasswordHash(r.Context(), userID, hash); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
