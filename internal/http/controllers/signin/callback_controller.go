package signin

import (
	"net/http"
	"strings"

	httperrors "github.com/idbridge/idbridge/internal/http/errors"
	svc "github.com/idbridge/idbridge/internal/http/services/signin"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

// CallbackController finishes the external handshake.
type CallbackController struct {
	service   svc.Service
	cookies   CookieWriter
	errorPath string
}

// Callback handles GET /signin/callback. On success the session cookie is
// set and the browser continues to the returnURL carried in the state; on
// failure no cookie is written and the browser lands on the error page.
func (c *CallbackController) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("CallbackController.Callback"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	provider := strings.TrimSpace(q.Get("authenticationType"))
	if provider == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("authenticationType required"))
		return
	}

	// A consent denial or provider fault arrives as an error param instead
	// of a code. No state to verify, nothing to complete.
	if idpErr := strings.TrimSpace(q.Get("error")); idpErr != "" {
		log.Warn("provider returned error",
			logger.Provider(provider),
			logger.String("error", idpErr),
			logger.String("description", q.Get("error_description")),
		)
		redirectWithError(w, r, c.errorPath, "exchange_failed")
		return
	}

	state := strings.TrimSpace(q.Get("state"))
	code := strings.TrimSpace(q.Get("code"))
	if state == "" || code == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("state and code required"))
		return
	}

	res, err := c.service.Callback(ctx, provider, state, code)
	if err != nil {
		log.Warn("callback failed",
			logger.Provider(provider),
			logger.Err(err),
		)
		redirectWithError(w, r, c.errorPath, errorCode(err))
		return
	}

	noStore(w)
	http.SetCookie(w, c.cookies.Cookie(res.Session))
	http.Redirect(w, r, res.ReturnURL, http.StatusFound)
}
