package command

import (
	"context"

	"github.com/goliatone/go-approvals/core"
	gocmd "github.com/goliatone/go-command"
)

// DecisionService is the mutating slice of the approval service that
// commands need.
type DecisionService interface {
	Decide(ctx context.Context, req core.ApprovalRequest) (core.ApprovalResult, error)
}

type ApproveCommand struct {
	service DecisionService
}

func NewApproveCommand(service DecisionService) *ApproveCommand {
	return &ApproveCommand{service: service}
}

func (c *ApproveCommand) Execute(ctx context.Context, msg ApproveMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: decision service is required")
	}
	req := msg.Request
	req.Action = core.ActionApprove
	out, err := c.service.Decide(ctx, req)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RejectCommand struct {
	service DecisionService
}

func NewRejectCommand(service DecisionService) *RejectCommand {
	return &RejectCommand{service: service}
}

func (c *RejectCommand) Execute(ctx context.Context, msg RejectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: decision service is required")
	}
	req := msg.Request
	req.Action = core.ActionReject
	out, err := c.service.Decide(ctx, req)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
