package query

import (
	"context"

	"github.com/goliatone/go-approvals/core"
)

// ObjectReader is the backend-facing read slice of the approval
// service.
type ObjectReader interface {
	GetObject(ctx context.Context, tenant string, objectType string, objectID string) (core.ApprovableObject, error)
	ListPending(ctx context.Context, q core.PendingQuery) ([]core.ApprovableObject, error)
}

// AuditReader serves the persisted decision trail.
type AuditReader interface {
	ListAudit(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error)
	GetAuditEntry(ctx context.Context, id string) (core.AuditLogEntry, error)
}

type GetObjectQuery struct {
	reader ObjectReader
}

func NewGetObjectQuery(reader ObjectReader) *GetObjectQuery {
	return &GetObjectQuery{reader: reader}
}

func (q *GetObjectQuery) Query(ctx context.Context, msg GetObjectMessage) (core.ApprovableObject, error) {
	if q == nil || q.reader == nil {
		return core.ApprovableObject{}, queryDependencyError("query: object reader is required")
	}
	return q.reader.GetObject(ctx, msg.Tenant, msg.ObjectType, msg.ObjectID)
}

type ListPendingQuery struct {
	reader ObjectReader
}

func NewListPendingQuery(reader ObjectReader) *ListPendingQuery {
	return &ListPendingQuery{reader: reader}
}

func (q *ListPendingQuery) Query(ctx context.Context, msg ListPendingMessage) ([]core.ApprovableObject, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: object reader is required")
	}
	return q.reader.ListPending(ctx, msg.Query)
}

type ListAuditQuery struct {
	reader AuditReader
}

func NewListAuditQuery(reader AuditReader) *ListAuditQuery {
	return &ListAuditQuery{reader: reader}
}

func (q *ListAuditQuery) Query(ctx context.Context, msg ListAuditMessage) (core.AuditPage, error) {
	if q == nil || q.reader == nil {
		return core.AuditPage{}, queryDependencyError("query: audit reader is required")
	}
	return q.reader.ListAudit(ctx, msg.Filter)
}

type GetAuditEntryQuery struct {
	reader AuditReader
}

func NewGetAuditEntryQuery(reader AuditReader) *GetAuditEntryQuery {
	return &GetAuditEntryQuery{reader: reader}
}

func (q *GetAuditEntryQuery) Query(ctx context.Context, msg GetAuditEntryMessage) (core.AuditLogEntry, error) {
	if q == nil || q.reader == nil {
		return core.AuditLogEntry{}, queryDependencyError("query: audit reader is required")
	}
	return q.reader.GetAuditEntry(ctx, msg.EntryID)
}
