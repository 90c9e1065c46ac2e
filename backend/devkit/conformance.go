// Package devkit verifies backend dialect clients against the contract the
// approval service depends on.
package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-approvals/core"
)

// Harness wires the conformance battery to a dialect under test. Seed
// installs an object with the given shared-vocabulary state in the backing
// system (a fake or a sandbox) and returns its identifier; only the pending
// and approved states are requested. MissingID is an identifier in the
// backend's native format that resolves to no object.
type Harness struct {
	Client    core.BackendClient
	Seed      func(objectType string, state core.ObjectState) string
	MissingID string
}

func (h Harness) validate() error {
	if h.Client == nil {
		return fmt.Errorf("devkit: harness client is required")
	}
	if h.Seed == nil {
		return fmt.Errorf("devkit: harness seed hook is required")
	}
	if strings.TrimSpace(h.MissingID) == "" {
		return fmt.Errorf("devkit: harness missing id is required")
	}
	return nil
}

// ValidateClientConformance runs the full battery against a dialect client.
func ValidateClientConformance(ctx context.Context, h Harness, objectType string) error {
	if err := h.validate(); err != nil {
		return err
	}
	if err := ValidateClientIdentity(h.Client); err != nil {
		return err
	}
	if err := ValidateFetchConformance(ctx, h, objectType); err != nil {
		return err
	}
	if err := ValidateTransitionConformance(ctx, h, objectType); err != nil {
		return err
	}
	if err := ValidateListPendingConformance(ctx, h, objectType); err != nil {
		return err
	}
	return ValidateHealthConformance(ctx, h.Client)
}

// ValidateClientIdentity checks the identity surface every client reports.
func ValidateClientIdentity(client core.BackendClient) error {
	if client == nil {
		return fmt.Errorf("devkit: client is required")
	}
	if strings.TrimSpace(client.Family()) == "" {
		return fmt.Errorf("devkit: client family is required")
	}
	if strings.TrimSpace(client.Tenant()) == "" {
		return fmt.Errorf("devkit: client tenant is required")
	}
	return nil
}

// ValidateFetchConformance checks reads: a seeded pending object comes back
// in the shared vocabulary with its identity intact, and a miss surfaces the
// typed not-found error.
func ValidateFetchConformance(ctx context.Context, h Harness, objectType string) error {
	if err := h.validate(); err != nil {
		return err
	}
	id := h.Seed(objectType, core.ObjectStatePending)
	object, err := h.Client.FetchObject(ctx, objectType, id)
	if err != nil {
		return fmt.Errorf("devkit: fetch seeded object: %w", err)
	}
	if object.State != core.ObjectStatePending {
		return fmt.Errorf("devkit: expected pending state, got %q", object.State)
	}
	if object.ID != id || object.Type != objectType {
		return fmt.Errorf("devkit: fetched identity mismatch: id=%q type=%q", object.ID, object.Type)
	}
	if object.Tenant != h.Client.Tenant() {
		return fmt.Errorf("devkit: expected tenant %q, got %q", h.Client.Tenant(), object.Tenant)
	}

	_, err = h.Client.FetchObject(ctx, objectType, h.MissingID)
	var notFound *core.ObjectNotFoundError
	if !errors.As(err, &notFound) {
		return fmt.Errorf("devkit: expected ObjectNotFoundError for %q, got %v", h.MissingID, err)
	}
	return nil
}

// ValidateTransitionConformance checks the write path: approvals and
// rejections land in the shared vocabulary, and a transition attempted on an
// already decided object reports a state conflict.
func ValidateTransitionConformance(ctx context.Context, h Harness, objectType string) error {
	if err := h.validate(); err != nil {
		return err
	}

	approveID := h.Seed(objectType, core.ObjectStatePending)
	approved, err := h.Client.ApplyTransition(ctx, core.TransitionRequest{
		ObjectType:    objectType,
		ObjectID:      approveID,
		Action:        core.ActionApprove,
		ExpectedState: core.ObjectStatePending,
	})
	if err != nil {
		return fmt.Errorf("devkit: approve transition: %w", err)
	}
	if approved.State != core.ObjectStateApproved {
		return fmt.Errorf("devkit: expected approved state, got %q", approved.State)
	}

	rejectID := h.Seed(objectType, core.ObjectStatePending)
	rejected, err := h.Client.ApplyTransition(ctx, core.TransitionRequest{
		ObjectType:    objectType,
		ObjectID:      rejectID,
		Action:        core.ActionReject,
		Reason:        "conformance rejection",
		ExpectedState: core.ObjectStatePending,
	})
	if err != nil {
		return fmt.Errorf("devkit: reject transition: %w", err)
	}
	if rejected.State != core.ObjectStateRejected {
		return fmt.Errorf("devkit: expected rejected state, got %q", rejected.State)
	}

	decidedID := h.Seed(objectType, core.ObjectStateApproved)
	_, err = h.Client.ApplyTransition(ctx, core.TransitionRequest{
		ObjectType:    objectType,
		ObjectID:      decidedID,
		Action:        core.ActionApprove,
		ExpectedState: core.ObjectStatePending,
	})
	var conflict *core.StateConflictError
	if !errors.As(err, &conflict) {
		return fmt.Errorf("devkit: expected StateConflictError for decided object, got %v", err)
	}
	if conflict.State != core.ObjectStateApproved {
		return fmt.Errorf("devkit: expected observed state approved, got %q", conflict.State)
	}
	return nil
}

// ValidateListPendingConformance checks the pending listing for clients that
// support it: decided objects must not leak into the result. Clients without
// the optional interface pass vacuously.
func ValidateListPendingConformance(ctx context.Context, h Harness, objectType string) error {
	if err := h.validate(); err != nil {
		return err
	}
	lister, ok := h.Client.(core.PendingLister)
	if !ok {
		return nil
	}
	pendingID := h.Seed(objectType, core.ObjectStatePending)
	decidedID := h.Seed(objectType, core.ObjectStateApproved)

	items, err := lister.ListPending(ctx, objectType, 50)
	if err != nil {
		return fmt.Errorf("devkit: list pending: %w", err)
	}
	found := false
	for _, item := range items {
		if item.State != core.ObjectStatePending {
			return fmt.Errorf("devkit: listing leaked state %q for %s", item.State, item.ID)
		}
		if item.ID == decidedID {
			return fmt.Errorf("devkit: listing leaked decided object %s", decidedID)
		}
		if item.ID == pendingID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("devkit: listing missed pending object %s", pendingID)
	}
	return nil
}

// ValidateHealthConformance checks the reachability probe for clients that
// expose one. Clients without the optional interface pass vacuously.
func ValidateHealthConformance(ctx context.Context, client core.BackendClient) error {
	if client == nil {
		return fmt.Errorf("devkit: client is required")
	}
	checker, ok := client.(core.HealthChecker)
	if !ok {
		return nil
	}
	if err := checker.Ping(ctx); err != nil {
		return fmt.Errorf("devkit: ping: %w", err)
	}
	return nil
}
