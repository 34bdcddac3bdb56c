package signin

import (
	"net/http"
	"strings"

	httperrors "github.com/idbridge/idbridge/internal/http/errors"
	svc "github.com/idbridge/idbridge/internal/http/services/signin"
	"github.com/idbridge/idbridge/internal/observability/logger"
)

// SignInController starts the external handshake.
type SignInController struct {
	service   svc.Service
	errorPath string
}

// SignIn handles GET /signin?authenticationType=X&returnUrl=Y by redirecting
// the browser to the provider's authorization URL.
func (c *SignInController) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SignInController.SignIn"))

	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	provider := strings.TrimSpace(q.Get("authenticationType"))
	if provider == "" {
		log.Warn("missing authenticationType")
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("authenticationType required"))
		return
	}
	returnURL := q.Get("returnUrl")

	res, err := c.service.Begin(ctx, provider, returnURL)
	if err != nil {
		log.Warn("begin challenge failed",
			logger.Provider(provider),
			logger.Err(err),
		)
		redirectWithError(w, r, c.errorPath, errorCode(err))
		return
	}

	noStore(w)
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}
