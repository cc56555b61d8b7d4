// Package contextkey defines the typed keys used to carry request-scoped
// values through context.Context.
package contextkey

type contextKey string

const (
	// ContextKeyRequestID carries the uuid assigned to each HTTP request.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyAgentID carries the authenticated agent's uuid.
	ContextKeyAgentID contextKey = "agent_id"
)
