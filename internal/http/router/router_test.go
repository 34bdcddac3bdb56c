package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	signinctrl "github.com/idbridge/idbridge/internal/http/controllers/signin"
	svc "github.com/idbridge/idbridge/internal/http/services/signin"
	"github.com/idbridge/idbridge/internal/session"
)

type stubService struct{}

func (stubService) Begin(context.Context, string, string) (*svc.BeginResult, error) {
	return &svc.BeginResult{RedirectURL: "/provider"}, nil
}

func (stubService) Callback(context.Context, string, string, string) (*svc.CallbackResult, error) {
	return nil, errors.New("unused")
}

func (stubService) SignOut(context.Context, string, string, string) (*svc.SignOutResult, error) {
	return &svc.SignOutResult{RedirectURL: "/"}, nil
}

func (stubService) Providers(context.Context) []svc.ProviderInfo { return nil }

type stubCookies struct{}

func (stubCookies) Cookie(s *session.Session) *http.Cookie {
	return &http.Cookie{Name: "sid", Value: s.Token}
}
func (stubCookies) DeletionCookie() *http.Cookie { return &http.Cookie{Name: "sid", MaxAge: -1} }
func (stubCookies) CookieName() string           { return "sid" }

func newTestRouter(health []HealthChecker) http.Handler {
	return New(Config{
		Controllers: signinctrl.NewControllers(stubService{}, stubCookies{}, "/signin/error"),
		Health:      health,
	})
}

func TestRoutes(t *testing.T) {
	h := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/signin?authenticationType=Google", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/signin/providers", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	h := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestHealthzFailingDependency(t *testing.T) {
	h := newTestRouter([]HealthChecker{
		func(context.Context) error { return errors.New("db down") },
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
