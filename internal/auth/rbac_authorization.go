package auth

import (
	"context"
	"net/http"

	"github.com/frahmantamala/scale-custody/internal"
	"github.com/frahmantamala/scale-custody/internal/core/access"
	"github.com/frahmantamala/scale-custody/internal/transport"
	"github.com/frahmantamala/scale-custody/pkg/logger"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (internal.Actor, error)
}

// RBACAuthorization resolves the bearer token to an actor and gates routes
// on role capabilities.
type RBACAuthorization struct {
	*transport.BaseHandler
	authenticator Authenticator
}

func NewRBACAuthorization(baseHandler *transport.BaseHandler, authenticator Authenticator) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler:   baseHandler,
		authenticator: authenticator,
	}
}

// Authenticate puts the actor on the request context and tags the request
// logger with the user id.
func (ra *RBACAuthorization) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := ra.authenticator.Authenticate(r.Context(), transport.BearerToken(r))
		if err != nil {
			logger.FromOr(r.Context(), ra.Logger).Warn("authentication failed", "path", r.URL.Path, "error", err)
			ra.HandleServiceError(w, err)
			return
		}

		ctx := internal.ContextWithActor(r.Context(), actor)
		ctx = logger.With(ctx, "userID", actor.UserID, "role", string(actor.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects callers whose role lacks any of caps.
func (ra *RBACAuthorization) Require(caps ...access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := access.Check(r.Context(), caps...); err != nil {
				logger.FromOr(r.Context(), ra.Logger).Warn("access denied", "path", r.URL.Path, "required", caps)
				ra.HandleServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
