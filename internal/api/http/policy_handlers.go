package http

import (
	"encoding/json"
	"net/http"

	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/policy"
)

// GET /policy returns the live policy, or the default when none is stored.
func GetPolicyHandler(store policy.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg, err := policy.Current(r.Context(), store)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// PUT /policy replaces the live policy. Submissions after this call use it.
func PutPolicyHandler(store policy.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cfg policy.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			badRequest(w, "bad json")
			return
		}
		cfg.Normalize()
		if err := cfg.Validate(); err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.SetPolicy(r.Context(), cfg); err != nil {
			writeError(w, log, err)
			return
		}
		log.Info("policy updated")
		writeJSON(w, http.StatusOK, cfg)
	}
}
