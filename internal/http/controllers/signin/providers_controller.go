package signin

import (
	"encoding/json"
	"net/http"

	httperrors "github.com/idbridge/idbridge/internal/http/errors"
	svc "github.com/idbridge/idbridge/internal/http/services/signin"
)

// ProvidersController lists the configured providers.
type ProvidersController struct {
	service svc.Service
}

// Providers handles GET /signin/providers.
func (c *ProvidersController) Providers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
		return
	}

	list := c.service.Providers(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(list)
}
