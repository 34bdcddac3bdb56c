// Package signin contains the controllers for the external sign-in
// endpoints.
package signin

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/idbridge/idbridge/internal/federation"
	httperrors "github.com/idbridge/idbridge/internal/http/errors"
	svc "github.com/idbridge/idbridge/internal/http/services/signin"
	"github.com/idbridge/idbridge/internal/identity"
	"github.com/idbridge/idbridge/internal/session"
)

// CookieWriter builds the session cookies. Implemented by the session
// authority.
type CookieWriter interface {
	Cookie(*session.Session) *http.Cookie
	DeletionCookie() *http.Cookie
	CookieName() string
}

// Controllers groups the sign-in domain controllers.
type Controllers struct {
	SignIn    *SignInController
	Callback  *CallbackController
	SignOut   *SignOutController
	Providers *ProvidersController
}

// NewControllers creates the aggregator. errorPath is where browsers land
// when a handshake dies; the failure code travels as an "error" query param.
func NewControllers(service svc.Service, cookies CookieWriter, errorPath string) *Controllers {
	if errorPath == "" {
		errorPath = "/signin/error"
	}
	return &Controllers{
		SignIn:    &SignInController{service: service, errorPath: errorPath},
		Callback:  &CallbackController{service: service, cookies: cookies, errorPath: errorPath},
		SignOut:   &SignOutController{service: service, cookies: cookies},
		Providers: &ProvidersController{service: service},
	}
}

// noStore marks the response uncacheable. Every endpoint here carries
// credentials or one-time parameters.
func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// redirectWithError sends the browser to the error page with the failure
// code attached.
func redirectWithError(w http.ResponseWriter, r *http.Request, errorPath, code string) {
	u, err := url.Parse(errorPath)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	q := u.Query()
	q.Set("error", code)
	u.RawQuery = q.Encode()

	noStore(w)
	http.Redirect(w, r, u.String(), http.StatusFound)
}

// errorCode maps service errors onto the public failure codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, federation.ErrUnknownProvider):
		return "unknown_provider"
	case errors.Is(err, federation.ErrExchangeFailed), errors.Is(err, federation.ErrIdentityInvalid):
		return "exchange_failed"
	case errors.Is(err, identity.ErrLinkageConflict):
		return "linkage_conflict"
	case errors.Is(err, identity.ErrAccountIncomplete):
		return "account_incomplete"
	default:
		return "server_error"
	}
}
