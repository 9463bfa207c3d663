package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Authorization-specific semantic convention attributes.
var (
	AttrOperation   = attribute.Key("authz.operation")
	AttrRequestID   = attribute.Key("authz.request.id")
	AttrOrgID       = attribute.Key("authz.organization.id")
	AttrActorRole   = attribute.Key("authz.actor.role")
	AttrDecision    = attribute.Key("authz.decision")
	AttrAuthorized  = attribute.Key("authz.deployment_authorized")
	AttrErrorClass  = attribute.Key("authz.error.class")
	AttrChainLength = attribute.Key("authz.audit.chain_length")
)

// ErrorClass maps an error onto a low-cardinality metric label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, contracts.ErrValidation):
		return "validation"
	case errors.Is(err, contracts.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, contracts.ErrFinalizationBlocked):
		return "finalization_blocked"
	case errors.Is(err, contracts.ErrAlreadyFinalized):
		return "already_finalized"
	case errors.Is(err, contracts.ErrIntegrity):
		return "integrity"
	case errors.Is(err, contracts.ErrPrecondition):
		return "precondition"
	case errors.Is(err, contracts.ErrNotFound):
		return "not_found"
	case errors.Is(err, contracts.ErrForbidden):
		return "forbidden"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	}
	return "internal"
}

// AnnotateDecision attaches the finalize outcome to the current span.
func AnnotateDecision(ctx context.Context, decision contracts.DeploymentDecision, authorized bool) {
	trace.SpanFromContext(ctx).SetAttributes(
		AttrDecision.String(string(decision)),
		AttrAuthorized.Bool(authorized),
	)
}

// AnnotateChain attaches the audit chain length to the current span.
func AnnotateChain(ctx context.Context, length int) {
	trace.SpanFromContext(ctx).SetAttributes(AttrChainLength.Int(length))
}
