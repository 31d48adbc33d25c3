package auth

import (
	"errors"
	"net/http"

	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

// AttachRoleFromStore replaces the token's role with the stored one, so role
// changes apply before the token expires. Unknown subjects keep the claim
// role only when allowClaimFallback is set (offline/dev).
func AttachRoleFromStore(store users.Store, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			u, err := store.Get(ctx, SubjectFromContext(ctx))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, string(u.Role))))
			case errors.Is(err, users.ErrNotFound) && allowClaimFallback && rbac.RoleFromContext(ctx) != "":
				next.ServeHTTP(w, r)
			default:
				rbac.Forbidden(w)
			}
		})
	}
}
