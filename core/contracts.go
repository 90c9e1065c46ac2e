package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// TransitionRequest asks a backend to move one document to a terminal state.
// ExpectedState rides along so the backend's own state check can reject races
// the optimistic pre-check missed; that re-check is the only serialization
// point between concurrent decisions.
type TransitionRequest struct {
	ObjectType    string
	ObjectID      string
	Action        ApprovalAction
	Reason        string
	ExpectedState ObjectState
}

// BackendClient is the fixed capability surface every dialect implements.
// One client is built per tenant at startup and holds that tenant's
// credential handle for its whole lifetime.
type BackendClient interface {
	Family() string
	Tenant() string
	FetchObject(ctx context.Context, objectType, objectID string) (ApprovableObject, error)
	ApplyTransition(ctx context.Context, req TransitionRequest) (ApprovableObject, error)
}

// PendingLister is an optional client capability for read-only listings of
// documents awaiting a decision.
type PendingLister interface {
	ListPending(ctx context.Context, objectType string, limit int) ([]ApprovableObject, error)
}

// HealthChecker is an optional client capability used by readiness probes.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// BackendDialect constructs clients for one protocol family. Construction
// must not perform I/O; authentication handshakes happen lazily on first use
// and their results are cached inside the client.
type BackendDialect interface {
	Family() string
	NewClient(profile BackendProfile, credential Secret) (BackendClient, error)
}

type Registry interface {
	Register(dialect BackendDialect) error
	Get(family string) (BackendDialect, bool)
	List() []BackendDialect
}

// AuditSink persists and serves immutable decision records.
type AuditSink interface {
	Record(ctx context.Context, entry AuditLogEntry) (AuditLogEntry, error)
	List(ctx context.Context, filter AuditFilter) (AuditPage, error)
	Get(ctx context.Context, id string) (AuditLogEntry, error)
}

type StoreProvider interface {
	AuditStore() AuditSink
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// ApprovalService is the full operation surface exposed to transports and
// command handlers.
type ApprovalService interface {
	Decide(ctx context.Context, req ApprovalRequest) (ApprovalResult, error)
	GetObject(ctx context.Context, tenant, objectType, objectID string) (ApprovableObject, error)
	ListPending(ctx context.Context, q PendingQuery) ([]ApprovableObject, error)
	ListAudit(ctx context.Context, filter AuditFilter) (AuditPage, error)
	GetAuditEntry(ctx context.Context, id string) (AuditLogEntry, error)
	CheckBackends(ctx context.Context) []BackendHealth
}
