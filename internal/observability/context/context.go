package context

import "context"

type requestIDKey struct{}
type orgIDKey struct{}
type actorKey struct{}

type actor struct {
	actorType string
	actorID   string
}

// WithRequestID stores the request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request correlation ID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithOrgID stores the active organization ID for log correlation.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey{}, orgID)
}

// OrgIDFromContext returns the active organization ID, if any.
func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(orgIDKey{}).(string)
	return value
}

// WithActor stores the authenticated actor for log correlation.
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{actorType: actorType, actorID: actorID})
}

// ActorFromContext returns the authenticated actor type and id, if any.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.actorType, value.actorID
}
