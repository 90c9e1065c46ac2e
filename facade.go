package approvals

import (
	"context"
	"fmt"

	approvalscommand "github.com/goliatone/go-approvals/command"
	"github.com/goliatone/go-approvals/core"
	approvalsquery "github.com/goliatone/go-approvals/query"
)

// CommandQueryService is the surface the facade wires handlers around.
// *core.Service satisfies it, and so can a slimmer implementation in tests
// or embedding applications.
type CommandQueryService interface {
	approvalscommand.DecisionService
	approvalsquery.ObjectReader
}

type Commands struct {
	Approve *approvalscommand.ApproveCommand
	Reject  *approvalscommand.RejectCommand
}

type Queries struct {
	GetObject     *approvalsquery.GetObjectQuery
	ListPending   *approvalsquery.ListPendingQuery
	ListAudit     *approvalsquery.ListAuditQuery
	GetAuditEntry *approvalsquery.GetAuditEntryQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	auditReader approvalsquery.AuditReader
}

// WithAuditReader overrides where audit queries read from. Without it the
// facade uses the service itself when it exposes audit reads, then falls
// back to the service's configured audit sink.
func WithAuditReader(reader approvalsquery.AuditReader) FacadeOption {
	return func(options *facadeOptions) {
		options.auditReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("approvals: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.auditReader
	if reader == nil {
		reader = resolveAuditReader(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Approve: approvalscommand.NewApproveCommand(service),
		Reject:  approvalscommand.NewRejectCommand(service),
	}
	facade.queries = Queries{
		GetObject:     approvalsquery.NewGetObjectQuery(service),
		ListPending:   approvalsquery.NewListPendingQuery(service),
		ListAudit:     approvalsquery.NewListAuditQuery(reader),
		GetAuditEntry: approvalsquery.NewGetAuditEntryQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveAuditReader(service CommandQueryService) approvalsquery.AuditReader {
	if service == nil {
		return nil
	}
	if reader, ok := service.(approvalsquery.AuditReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.AuditSink == nil {
		return nil
	}
	return auditSinkReader{sink: deps.AuditSink}
}

// auditSinkReader serves audit queries straight from a sink for services
// that do not expose audit reads themselves.
type auditSinkReader struct {
	sink core.AuditSink
}

func (r auditSinkReader) ListAudit(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error) {
	return r.sink.List(ctx, filter)
}

func (r auditSinkReader) GetAuditEntry(ctx context.Context, id string) (core.AuditLogEntry, error) {
	return r.sink.Get(ctx, id)
}
