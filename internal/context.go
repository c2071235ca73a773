package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

type ctxKey string

const (
	contextActorKey   ctxKey = "actor"
	contextRequestKey ctxKey = "request_info"
)

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID int64
	Role   custody.Role
}

// RequestInfo carries request provenance recorded on audit entries.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, contextActorKey, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(contextActorKey).(Actor)
	if !ok || actor.UserID == 0 {
		return Actor{}, false
	}
	return actor, true
}

func ContextWithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, contextRequestKey, info)
}

func RequestInfoFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(contextRequestKey).(RequestInfo)
	return info
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
