package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-approvals/core"
	"github.com/uptrace/bun"
)

type auditEntryRecord struct {
	bun.BaseModel `bun:"table:approval_audit_entries,alias:aae"`

	ID           string         `bun:"id,pk"`
	Tenant       string         `bun:"tenant,notnull"`
	ObjectType   string         `bun:"object_type,notnull"`
	ObjectID     string         `bun:"object_id,notnull"`
	Action       string         `bun:"action,notnull"`
	Actor        string         `bun:"actor,notnull"`
	ActorRole    string         `bun:"actor_role"`
	PriorState   string         `bun:"prior_state"`
	ResultState  string         `bun:"result_state"`
	Outcome      string         `bun:"outcome,notnull"`
	Reason       string         `bun:"reason"`
	ErrorMessage string         `bun:"error_message"`
	RequestID    string         `bun:"request_id"`
	Source       string         `bun:"source"`
	ObjectData   map[string]any `bun:"object_data,type:jsonb,notnull"`
	Metadata     map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt    time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *auditEntryRecord) toDomain() core.AuditLogEntry {
	if r == nil {
		return core.AuditLogEntry{}
	}
	return core.AuditLogEntry{
		ID:           r.ID,
		Tenant:       r.Tenant,
		ObjectType:   r.ObjectType,
		ObjectID:     r.ObjectID,
		Action:       r.Action,
		Actor:        r.Actor,
		ActorRole:    r.ActorRole,
		PriorState:   r.PriorState,
		ResultState:  r.ResultState,
		Outcome:      core.AuditOutcome(r.Outcome),
		Reason:       r.Reason,
		ErrorMessage: r.ErrorMessage,
		RequestID:    r.RequestID,
		Source:       r.Source,
		ObjectData:   copyAnyMap(r.ObjectData),
		Metadata:     copyAnyMap(r.Metadata),
		CreatedAt:    r.CreatedAt,
	}
}

func auditRecordFromDomain(entry core.AuditLogEntry) *auditEntryRecord {
	return &auditEntryRecord{
		ID:           strings.TrimSpace(entry.ID),
		Tenant:       strings.TrimSpace(entry.Tenant),
		ObjectType:   strings.TrimSpace(entry.ObjectType),
		ObjectID:     strings.TrimSpace(entry.ObjectID),
		Action:       strings.TrimSpace(entry.Action),
		Actor:        strings.TrimSpace(entry.Actor),
		ActorRole:    strings.TrimSpace(entry.ActorRole),
		PriorState:   strings.TrimSpace(entry.PriorState),
		ResultState:  strings.TrimSpace(entry.ResultState),
		Outcome:      strings.TrimSpace(string(entry.Outcome)),
		Reason:       entry.Reason,
		ErrorMessage: entry.ErrorMessage,
		RequestID:    strings.TrimSpace(entry.RequestID),
		Source:       strings.TrimSpace(entry.Source),
		ObjectData:   copyAnyMap(entry.ObjectData),
		Metadata:     copyAnyMap(entry.Metadata),
		CreatedAt:    entry.CreatedAt.UTC(),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
