package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type testDialect struct {
	family  string
	clients map[string]*testClient
	err     error
}

func (d testDialect) Family() string { return d.family }

func (d testDialect) NewClient(profile BackendProfile, credential Secret) (BackendClient, error) {
	if d.err != nil {
		return nil, d.err
	}
	if client, ok := d.clients[profile.Tenant]; ok {
		client.profile = profile
		client.credential = credential
		return client, nil
	}
	return newTestClient(profile.Tenant, d.family), nil
}

type testClient struct {
	mu         sync.Mutex
	tenant     string
	family     string
	profile    BackendProfile
	credential Secret
	objects    map[string]*ApprovableObject
	fetchErr   error
	applyErr   error
	pingErr    error
	fetchCalls int
	applyCalls int
	pingCalls  int

	// beforeApply runs outside the client lock, before the state check.
	beforeApply func()
}

func newTestClient(tenant, family string) *testClient {
	return &testClient{
		tenant:  tenant,
		family:  family,
		objects: map[string]*ApprovableObject{},
	}
}

func (c *testClient) seed(object ApprovableObject) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := object
	c.objects[objectKey(object.Type, object.ID)] = &copied
}

func (c *testClient) stateOf(objectType, objectID string) ObjectState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if object, ok := c.objects[objectKey(objectType, objectID)]; ok {
		return object.State
	}
	return ""
}

func (c *testClient) calls() (fetches, applies int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCalls, c.applyCalls
}

func (c *testClient) Family() string { return c.family }

func (c *testClient) Tenant() string { return c.tenant }

func (c *testClient) FetchObject(_ context.Context, objectType, objectID string) (ApprovableObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.fetchErr != nil {
		return ApprovableObject{}, c.fetchErr
	}
	object, ok := c.objects[objectKey(objectType, objectID)]
	if !ok {
		return ApprovableObject{}, &ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: objectType,
			ObjectID:   objectID,
		}
	}
	return *object, nil
}

func (c *testClient) ApplyTransition(_ context.Context, req TransitionRequest) (ApprovableObject, error) {
	if c.beforeApply != nil {
		c.beforeApply()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyCalls++
	if c.applyErr != nil {
		return ApprovableObject{}, c.applyErr
	}
	object, ok := c.objects[objectKey(req.ObjectType, req.ObjectID)]
	if !ok {
		return ApprovableObject{}, &ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: req.ObjectType,
			ObjectID:   req.ObjectID,
		}
	}
	if object.State != req.ExpectedState {
		return ApprovableObject{}, &StateConflictError{
			Tenant:     c.tenant,
			ObjectType: req.ObjectType,
			ObjectID:   req.ObjectID,
			State:      object.State,
		}
	}
	object.State = TargetState(req.Action)
	return *object, nil
}

func (c *testClient) ListPending(_ context.Context, objectType string, limit int) ([]ApprovableObject, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]ApprovableObject, 0)
	for _, object := range c.objects {
		if object.Type == objectType && object.State == ObjectStatePending {
			items = append(items, *object)
		}
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (c *testClient) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingCalls++
	return c.pingErr
}

// minimalClient satisfies BackendClient only, with no optional capabilities.
type minimalClient struct {
	tenant string
	family string
}

func (c minimalClient) Family() string { return c.family }

func (c minimalClient) Tenant() string { return c.tenant }

func (c minimalClient) FetchObject(context.Context, string, string) (ApprovableObject, error) {
	return ApprovableObject{}, fmt.Errorf("minimal client: fetch not implemented")
}

func (c minimalClient) ApplyTransition(context.Context, TransitionRequest) (ApprovableObject, error) {
	return ApprovableObject{}, fmt.Errorf("minimal client: apply not implemented")
}

type memoryAuditSink struct {
	mu        sync.Mutex
	next      int
	entries   []AuditLogEntry
	recordErr error
}

func newMemoryAuditSink() *memoryAuditSink {
	return &memoryAuditSink{}
}

func (s *memoryAuditSink) Record(ctx context.Context, entry AuditLogEntry) (AuditLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return AuditLogEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return AuditLogEntry{}, s.recordErr
	}
	s.next++
	entry.ID = fmt.Sprintf("audit_%d", s.next)
	entry.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, entry)
	return entry, nil
}

func (s *memoryAuditSink) List(_ context.Context, filter AuditFilter) (AuditPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]AuditLogEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		if filter.Tenant != "" && entry.Tenant != filter.Tenant {
			continue
		}
		if filter.ObjectType != "" && entry.ObjectType != filter.ObjectType {
			continue
		}
		if filter.ObjectID != "" && entry.ObjectID != filter.ObjectID {
			continue
		}
		if filter.Actor != "" && entry.Actor != filter.Actor {
			continue
		}
		if filter.Outcome != "" && entry.Outcome != filter.Outcome {
			continue
		}
		matched = append(matched, entry)
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	start := (page - 1) * perPage
	if start > len(matched) {
		start = len(matched)
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}
	return AuditPage{
		Items:   matched[start:end],
		Page:    page,
		PerPage: perPage,
		Total:   len(matched),
		HasNext: end < len(matched),
	}, nil
}

func (s *memoryAuditSink) Get(_ context.Context, id string) (AuditLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return AuditLogEntry{}, fmt.Errorf("audit entry %q not found", id)
}

func (s *memoryAuditSink) all() []AuditLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditLogEntry(nil), s.entries...)
}

func (s *memoryAuditSink) outcomes() []AuditOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	outcomes := make([]AuditOutcome, 0, len(s.entries))
	for _, entry := range s.entries {
		outcomes = append(outcomes, entry.Outcome)
	}
	return outcomes
}

func objectKey(objectType, objectID string) string {
	return strings.TrimSpace(objectType) + "/" + strings.TrimSpace(objectID)
}

func testTenantConfig(name string) TenantConfig {
	return TenantConfig{
		Name:   name,
		Family: "jsonrpc",
		Host:   "https://erp." + name + ".test",
	}
}

func newTestService(t *testing.T, cfg Config, client BackendClient, sink AuditSink, opts ...Option) *Service {
	t.Helper()
	base := []Option{}
	if client != nil {
		base = append(base, WithBackendClient(client.Tenant(), client))
	}
	if sink != nil {
		base = append(base, WithAuditSink(sink))
	}
	svc, err := NewService(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func pendingInvoice(id string) ApprovableObject {
	amount := 1250.50
	return ApprovableObject{
		ID:          id,
		Type:        ObjectTypeInvoice,
		Tenant:      "acme",
		State:       ObjectStatePending,
		DisplayName: "INV/" + id,
		Amount:      &amount,
		Currency:    "USD",
		Raw: map[string]any{
			"name":   "INV/" + id,
			"state":  "draft",
			"amount": amount,
		},
	}
}

func approveRequest(id string) ApprovalRequest {
	return ApprovalRequest{
		Tenant:     "acme",
		ObjectType: ObjectTypeInvoice,
		ObjectID:   id,
		Action:     ActionApprove,
		Actor:      "ana@acme.test",
		ActorRole:  "manager",
		RequestID:  "req_" + id,
	}
}
