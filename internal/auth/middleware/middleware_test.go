package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-assess/internal/logger"
	"github.com/mind-engage/mindengage-assess/internal/rbac"
	"github.com/mind-engage/mindengage-assess/internal/users"
)

func newUsers(t *testing.T) users.Store {
	t.Helper()
	users.HashCost = bcrypt.MinCost
	s := users.NewInMemoryStore()
	_, err := s.BulkUpsert(context.Background(), []users.Row{
		{ID: "u1", Username: "sam", Password: "pw", Role: "student"},
	})
	require.NoError(t, err)
	return s
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(SubjectFromContext(r.Context()) + "|" + rbac.RoleFromContext(r.Context())))
	})
}

func TestLoginIssuesUsableToken(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	store := newUsers(t)
	login := LoginHandler(a, store, logger.Nop())

	rec := httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"sam","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	tok := out.AccessToken
	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Sub)
	assert.Equal(t, "STUDENT", c.Role)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	JWTMiddleware(a)(echoIdentity()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1|STUDENT", rec.Body.String())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	login := LoginHandler(a, newUsers(t), logger.Nop())
	for _, body := range []string{`{"username":"sam","password":"nope"}`, `{"username":"ghost","password":"pw"}`} {
		rec := httptest.NewRecorder()
		login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := httptest.NewRecorder()
	login(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJWTMiddlewareRejects(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	other := NewAuthService("different", time.Hour)
	forged, err := other.IssueJWT("u1", "ADMIN")
	require.NoError(t, err)

	expiredSvc := NewAuthService("s3cret", time.Minute)
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredSvc.IssueJWT("u1", "STUDENT")
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing": "",
		"forged":  "Bearer " + forged,
		"expired": "Bearer " + expired,
		"garbage": "Bearer abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			JWTMiddleware(a)(echoIdentity()).ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAttachRoleFromStore(t *testing.T) {
	store := newUsers(t)
	require.NoError(t, store.SetRole(context.Background(), "u1", users.RoleSupervisor))

	run := func(sub, claimRole string, fallback bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		ctx := rbac.WithRole(WithSubject(req.Context(), sub), claimRole)
		rec := httptest.NewRecorder()
		AttachRoleFromStore(store, fallback)(echoIdentity()).ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	rec := run("u1", "STUDENT", false)
	assert.Equal(t, "u1|SUPERVISOR", rec.Body.String())

	rec = run("ghost", "ADMIN", true)
	assert.Equal(t, "ghost|ADMIN", rec.Body.String())

	rec = run("ghost", "ADMIN", false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
