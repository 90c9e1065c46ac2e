package command

import (
	"strings"

	"github.com/goliatone/go-approvals/core"
)

const (
	TypeApprove = "approvals.command.approve"
	TypeReject  = "approvals.command.reject"
)

// ApproveMessage carries an approval decision. The handler stamps the
// action, so a request arriving with Action set cannot smuggle a
// rejection through the approve route.
type ApproveMessage struct {
	Request core.ApprovalRequest
}

func (ApproveMessage) Type() string { return TypeApprove }

func (m ApproveMessage) Validate() error {
	return validateDecisionRequest(m.Request)
}

// RejectMessage carries a rejection decision.
type RejectMessage struct {
	Request core.ApprovalRequest
}

func (RejectMessage) Type() string { return TypeReject }

func (m RejectMessage) Validate() error {
	return validateDecisionRequest(m.Request)
}

// validateDecisionRequest checks the fields without which a decision
// cannot reach the service. The service still runs the full
// normalization pass, including object type and actor checks.
func validateDecisionRequest(req core.ApprovalRequest) error {
	if strings.TrimSpace(req.Tenant) == "" {
		return commandValidationError("tenant", "tenant is required")
	}
	if strings.TrimSpace(req.ObjectType) == "" {
		return commandValidationError("object_type", "object type is required")
	}
	if strings.TrimSpace(req.ObjectID) == "" {
		return commandValidationError("object_id", "object id is required")
	}
	if strings.TrimSpace(req.Actor) == "" {
		return commandValidationError("actor", "actor is required")
	}
	return nil
}
