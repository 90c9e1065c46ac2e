package query

import (
	"strings"

	"github.com/goliatone/go-approvals/core"
)

const (
	TypeGetObject     = "approvals.query.object.get"
	TypeListPending   = "approvals.query.pending.list"
	TypeListAudit     = "approvals.query.audit.list"
	TypeGetAuditEntry = "approvals.query.audit.get"
)

type GetObjectMessage struct {
	Tenant     string
	ObjectType string
	ObjectID   string
}

func (GetObjectMessage) Type() string { return TypeGetObject }

func (m GetObjectMessage) Validate() error {
	if strings.TrimSpace(m.Tenant) == "" {
		return queryValidationError("tenant", "tenant is required")
	}
	if strings.TrimSpace(m.ObjectType) == "" {
		return queryValidationError("object_type", "object type is required")
	}
	if strings.TrimSpace(m.ObjectID) == "" {
		return queryValidationError("object_id", "object id is required")
	}
	return nil
}

type ListPendingMessage struct {
	Query core.PendingQuery
}

func (ListPendingMessage) Type() string { return TypeListPending }

func (m ListPendingMessage) Validate() error {
	if strings.TrimSpace(m.Query.Tenant) == "" {
		return queryValidationError("tenant", "tenant is required")
	}
	if strings.TrimSpace(m.Query.ObjectType) == "" {
		return queryValidationError("object_type", "object type is required")
	}
	if m.Query.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}

type ListAuditMessage struct {
	Filter core.AuditFilter
}

func (ListAuditMessage) Type() string { return TypeListAudit }

func (m ListAuditMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "window end precedes window start")
	}
	return nil
}

type GetAuditEntryMessage struct {
	EntryID string
}

func (GetAuditEntryMessage) Type() string { return TypeGetAuditEntry }

func (m GetAuditEntryMessage) Validate() error {
	if strings.TrimSpace(m.EntryID) == "" {
		return queryValidationError("entry_id", "entry id is required")
	}
	return nil
}
