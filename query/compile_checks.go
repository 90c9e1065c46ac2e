package query

import (
	"github.com/goliatone/go-approvals/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetObjectMessage, core.ApprovableObject]     = (*GetObjectQuery)(nil)
	_ gocmd.Querier[ListPendingMessage, []core.ApprovableObject] = (*ListPendingQuery)(nil)
	_ gocmd.Querier[ListAuditMessage, core.AuditPage]            = (*ListAuditQuery)(nil)
	_ gocmd.Querier[GetAuditEntryMessage, core.AuditLogEntry]    = (*GetAuditEntryQuery)(nil)
)
