package command

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-approvals/core"
	gocmd "github.com/goliatone/go-command"
)

type stubDecisionService struct {
	decideFn func(ctx context.Context, req core.ApprovalRequest) (core.ApprovalResult, error)
}

func (s stubDecisionService) Decide(ctx context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
	if s.decideFn == nil {
		return core.ApprovalResult{}, nil
	}
	return s.decideFn(ctx, req)
}

func decisionRequest() core.ApprovalRequest {
	return core.ApprovalRequest{
		Tenant:     "acme",
		ObjectType: "invoice",
		ObjectID:   "42",
		Actor:      "ava@acme.example",
		ActorRole:  "finance_manager",
		Reason:     "within budget",
	}
}

func TestApproveCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.ApprovalResult{
		Object:       core.ApprovableObject{ID: "42", Type: "invoice", Tenant: "acme", State: core.ObjectStateApproved},
		Outcome:      core.OutcomeApplied,
		AuditEntryID: "audit-1",
		AuditState:   core.AuditStateRecorded,
	}
	called := false

	svc := stubDecisionService{
		decideFn: func(_ context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
			called = true
			if req.Action != core.ActionApprove {
				t.Fatalf("expected approve action, got %q", req.Action)
			}
			if req.Tenant != "acme" || req.ObjectID != "42" {
				t.Fatalf("unexpected request: %#v", req)
			}
			return expected, nil
		},
	}

	cmd := NewApproveCommand(svc)
	collector := gocmd.NewResult[core.ApprovalResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, ApproveMessage{Request: decisionRequest()}); err != nil {
		t.Fatalf("execute approve: %v", err)
	}
	if !called {
		t.Fatalf("expected decision service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.AuditEntryID != expected.AuditEntryID || result.Object.State != core.ObjectStateApproved {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestApproveCommand_StampsActionOverMessagePayload(t *testing.T) {
	var seen core.ApprovalAction
	svc := stubDecisionService{
		decideFn: func(_ context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
			seen = req.Action
			return core.ApprovalResult{}, nil
		},
	}

	request := decisionRequest()
	request.Action = core.ActionReject
	if err := NewApproveCommand(svc).Execute(context.Background(), ApproveMessage{Request: request}); err != nil {
		t.Fatalf("execute approve: %v", err)
	}
	if seen != core.ActionApprove {
		t.Fatalf("expected handler to stamp approve over the payload action, got %q", seen)
	}
}

func TestRejectCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.ApprovalResult{
		Object:     core.ApprovableObject{ID: "42", Type: "invoice", Tenant: "acme", State: core.ObjectStateRejected},
		Outcome:    core.OutcomeApplied,
		AuditState: core.AuditStateRecorded,
	}

	svc := stubDecisionService{
		decideFn: func(_ context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
			if req.Action != core.ActionReject {
				t.Fatalf("expected reject action, got %q", req.Action)
			}
			if req.Reason != "within budget" {
				t.Fatalf("expected reason to pass through, got %q", req.Reason)
			}
			return expected, nil
		},
	}

	cmd := NewRejectCommand(svc)
	collector := gocmd.NewResult[core.ApprovalResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, RejectMessage{Request: decisionRequest()}); err != nil {
		t.Fatalf("execute reject: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Object.State != core.ObjectStateRejected {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestDecisionCommands_PropagateServiceErrors(t *testing.T) {
	boom := errors.New("backend offline")
	svc := stubDecisionService{
		decideFn: func(_ context.Context, _ core.ApprovalRequest) (core.ApprovalResult, error) {
			return core.ApprovalResult{}, boom
		},
	}

	if err := NewApproveCommand(svc).Execute(context.Background(), ApproveMessage{Request: decisionRequest()}); !errors.Is(err, boom) {
		t.Fatalf("expected service error from approve, got %v", err)
	}
	if err := NewRejectCommand(svc).Execute(context.Background(), RejectMessage{Request: decisionRequest()}); !errors.Is(err, boom) {
		t.Fatalf("expected service error from reject, got %v", err)
	}
}

func TestDecisionCommands_ExecuteWithoutCollector(t *testing.T) {
	svc := stubDecisionService{}
	if err := NewApproveCommand(svc).Execute(context.Background(), ApproveMessage{Request: decisionRequest()}); err != nil {
		t.Fatalf("execute without collector: %v", err)
	}
}

func TestDecisionMessages_ValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*core.ApprovalRequest)
	}{
		{"missing tenant", func(r *core.ApprovalRequest) { r.Tenant = "" }},
		{"missing object type", func(r *core.ApprovalRequest) { r.ObjectType = "  " }},
		{"missing object id", func(r *core.ApprovalRequest) { r.ObjectID = "" }},
		{"missing actor", func(r *core.ApprovalRequest) { r.Actor = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			request := decisionRequest()
			tc.mutate(&request)
			if err := (ApproveMessage{Request: request}).Validate(); err == nil {
				t.Fatalf("expected approve validation failure")
			}
			if err := (RejectMessage{Request: request}).Validate(); err == nil {
				t.Fatalf("expected reject validation failure")
			}
		})
	}

	if err := (ApproveMessage{Request: decisionRequest()}).Validate(); err != nil {
		t.Fatalf("expected complete request to validate: %v", err)
	}
}

func TestDecisionMessages_Types(t *testing.T) {
	if (ApproveMessage{}).Type() != "approvals.command.approve" {
		t.Fatalf("unexpected approve type %q", (ApproveMessage{}).Type())
	}
	if (RejectMessage{}).Type() != "approvals.command.reject" {
		t.Fatalf("unexpected reject type %q", (RejectMessage{}).Type())
	}
}
