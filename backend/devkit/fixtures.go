package devkit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/goliatone/go-approvals/core"
)

// ClientFixture is an in-memory BackendClient for code that consumes the
// backend contract without a live dialect. It honors the pre-check and
// conflict semantics real dialects implement, so the conformance battery is
// itself validated against it.
type ClientFixture struct {
	family string
	tenant string

	mu      sync.Mutex
	nextID  int
	objects map[string]map[string]core.ObjectState
	pingErr error
}

func NewClientFixture(family, tenant string) *ClientFixture {
	return &ClientFixture{
		family:  family,
		tenant:  tenant,
		objects: map[string]map[string]core.ObjectState{},
	}
}

// Seed installs an object in the given state and returns its identifier.
func (c *ClientFixture) Seed(objectType string, state core.ObjectState) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := "fx-" + strconv.Itoa(c.nextID)
	if c.objects[objectType] == nil {
		c.objects[objectType] = map[string]core.ObjectState{}
	}
	c.objects[objectType][id] = state
	return id
}

// SetPingError makes subsequent Ping calls fail with err.
func (c *ClientFixture) SetPingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingErr = err
}

func (c *ClientFixture) Family() string { return c.family }

func (c *ClientFixture) Tenant() string { return c.tenant }

func (c *ClientFixture) FetchObject(_ context.Context, objectType, objectID string) (core.ApprovableObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.objects[objectType][objectID]
	if !ok {
		return core.ApprovableObject{}, &core.ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: objectType,
			ObjectID:   objectID,
		}
	}
	return c.snapshot(objectType, objectID, state), nil
}

func (c *ClientFixture) ApplyTransition(_ context.Context, request core.TransitionRequest) (core.ApprovableObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.objects[request.ObjectType][request.ObjectID]
	if !ok {
		return core.ApprovableObject{}, &core.ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: request.ObjectType,
			ObjectID:   request.ObjectID,
		}
	}
	if request.ExpectedState != "" && state != request.ExpectedState {
		return core.ApprovableObject{}, &core.StateConflictError{
			Tenant:     c.tenant,
			ObjectType: request.ObjectType,
			ObjectID:   request.ObjectID,
			State:      state,
		}
	}
	var next core.ObjectState
	switch request.Action {
	case core.ActionApprove:
		next = core.ObjectStateApproved
	case core.ActionReject:
		next = core.ObjectStateRejected
	default:
		return core.ApprovableObject{}, fmt.Errorf("devkit: unsupported action %q", request.Action)
	}
	c.objects[request.ObjectType][request.ObjectID] = next
	return c.snapshot(request.ObjectType, request.ObjectID, next), nil
}

func (c *ClientFixture) ListPending(_ context.Context, objectType string, limit int) ([]core.ApprovableObject, error) {
	if limit <= 0 {
		limit = 50
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.objects[objectType]))
	for id, state := range c.objects[objectType] {
		if state == core.ObjectStatePending {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]core.ApprovableObject, 0, len(ids))
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		out = append(out, c.snapshot(objectType, id, core.ObjectStatePending))
	}
	return out, nil
}

func (c *ClientFixture) Ping(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingErr
}

func (c *ClientFixture) snapshot(objectType, id string, state core.ObjectState) core.ApprovableObject {
	return core.ApprovableObject{
		ID:          id,
		Type:        objectType,
		Tenant:      c.tenant,
		State:       state,
		DisplayName: objectType + " " + id,
		Raw:         map[string]any{"state": string(state)},
	}
}

var (
	_ core.BackendClient = (*ClientFixture)(nil)
	_ core.PendingLister = (*ClientFixture)(nil)
	_ core.HealthChecker = (*ClientFixture)(nil)
)
