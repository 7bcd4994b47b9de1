package controllers

import (
	"context"
	"net/http"
	"time"

	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/utils"
)

// Base carries what every controller needs: the per-request store timeout
// and whether internal error detail may be shown.
type Base struct {
	Timeout time.Duration
	Dev     bool
}

func (b Base) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}

func (b Base) fail(w http.ResponseWriter, err error) {
	utils.WriteError(w, err, b.Dev)
}

// caller returns the authenticated user or writes a 401.
func (b Base) caller(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		b.fail(w, utils.Unauthorized("Not authenticated"))
	}
	return user, ok
}
