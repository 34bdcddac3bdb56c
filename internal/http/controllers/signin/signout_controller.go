package signin

import (
	"net/http"
	"strings"

	httperrors "github.com/idbridge/idbridge/internal/http/errors"
	svc "github.com/idbridge/idbridge/internal/http/services/signin"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

// SignOutController terminates the session.
type SignOutController struct {
	service svc.Service
	cookies CookieWriter
}

// SignOut handles GET and POST /signin/signout. The deletion cookie goes out
// on every response, even when no session existed; sign-out is idempotent.
func (c *SignOutController) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignOutController.SignOut"))

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	token := ""
	if cookie, err := r.Cookie(c.cookies.CookieName()); err == nil {
		token = cookie.Value
	}

	q := r.URL.Query()
	res, err := c.service.SignOut(ctx, token, q.Get("returnUrl"), strings.TrimSpace(q.Get("authenticationType")))
	if err != nil {
		log.Error("sign-out failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	noStore(w)
	http.SetCookie(w, c.cookies.DeletionCookie())
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}
