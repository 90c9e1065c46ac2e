package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidAction          = errors.New("core: invalid approval action")
	ErrInvalidObjectType      = errors.New("core: invalid object type")
	ErrInvalidStateTransition = errors.New("core: invalid object state transition")
	ErrUnknownTenant          = errors.New("core: unknown tenant")
)

type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
)

func ParseAction(raw string) (ApprovalAction, error) {
	switch ApprovalAction(strings.TrimSpace(strings.ToLower(raw))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
	}
}

type ObjectState string

const (
	ObjectStatePending  ObjectState = "pending"
	ObjectStateApproved ObjectState = "approved"
	ObjectStateRejected ObjectState = "rejected"
)

// TargetState returns the terminal state an action drives a pending object to.
func TargetState(action ApprovalAction) ObjectState {
	if action == ActionReject {
		return ObjectStateRejected
	}
	return ObjectStateApproved
}

func stateTransitionAllowed(current ObjectState, action ApprovalAction) bool {
	if current != ObjectStatePending {
		return false
	}
	return action == ActionApprove || action == ActionReject
}

const (
	ObjectTypeInvoice = "invoice"
	ObjectTypeExpense = "expense"
	ObjectTypeLeave   = "leave"
)

func KnownObjectTypes() []string {
	return []string{ObjectTypeInvoice, ObjectTypeExpense, ObjectTypeLeave}
}

func validObjectType(objectType string) bool {
	switch strings.TrimSpace(strings.ToLower(objectType)) {
	case ObjectTypeInvoice, ObjectTypeExpense, ObjectTypeLeave:
		return true
	default:
		return false
	}
}

// ApprovalRequest is a single approve/reject decision submitted by an
// upstream orchestrator on behalf of a human actor.
type ApprovalRequest struct {
	Tenant     string
	ObjectType string
	ObjectID   string
	Action     ApprovalAction
	Actor      string
	ActorRole  string
	Reason     string
	RequestID  string
	Metadata   map[string]any
}

func (r *ApprovalRequest) Normalize() {
	if r == nil {
		return
	}
	r.Tenant = strings.TrimSpace(r.Tenant)
	r.ObjectType = strings.TrimSpace(strings.ToLower(r.ObjectType))
	r.ObjectID = strings.TrimSpace(r.ObjectID)
	r.Action = ApprovalAction(strings.TrimSpace(strings.ToLower(string(r.Action))))
	r.Actor = strings.TrimSpace(r.Actor)
	r.ActorRole = strings.TrimSpace(strings.ToLower(r.ActorRole))
	r.Reason = strings.TrimSpace(r.Reason)
	r.RequestID = strings.TrimSpace(r.RequestID)
}

// Validate checks the payload only. It performs no I/O and does not consult
// tenant configuration; unknown tenants are rejected during resolution.
func (r ApprovalRequest) Validate() error {
	if r.Tenant == "" {
		return fmt.Errorf("core: tenant is required")
	}
	if r.ObjectType == "" {
		return fmt.Errorf("core: object type is required")
	}
	if !validObjectType(r.ObjectType) {
		return fmt.Errorf("%w: %q", ErrInvalidObjectType, r.ObjectType)
	}
	if r.ObjectID == "" {
		return fmt.Errorf("core: object id is required")
	}
	if r.Action != ActionApprove && r.Action != ActionReject {
		return fmt.Errorf("%w: %q", ErrInvalidAction, r.Action)
	}
	if r.Actor == "" {
		return fmt.Errorf("core: actor is required")
	}
	if r.ActorRole == "" {
		return fmt.Errorf("core: actor role is required")
	}
	return nil
}

// ApprovableObject is the normalized snapshot of a backend document. Object
// ids are strings at this level; dialects that address documents numerically
// parse them at the wire boundary.
type ApprovableObject struct {
	ID          string
	Type        string
	Tenant      string
	State       ObjectState
	DisplayName string
	Amount      *float64
	Currency    string
	Raw         map[string]any
}

// BackendProfile describes how one tenant reaches its ERP backend. Profiles
// form a closed allow-list; resolution fails for any tenant not present.
type BackendProfile struct {
	Tenant        string
	Family        string
	Host          string
	Database      string
	CredentialRef string
}

func (p BackendProfile) Validate() error {
	if strings.TrimSpace(p.Tenant) == "" {
		return fmt.Errorf("core: profile tenant is required")
	}
	if strings.TrimSpace(p.Family) == "" {
		return fmt.Errorf("core: profile family is required for tenant %q", p.Tenant)
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("core: profile host is required for tenant %q", p.Tenant)
	}
	return nil
}

type AuditOutcome string

const (
	OutcomeApplied              AuditOutcome = "applied"
	OutcomeRejectedInvalidState AuditOutcome = "rejected_invalid_state"
	OutcomeRejectedValidation   AuditOutcome = "rejected_validation"
	OutcomeRejectedAuth         AuditOutcome = "rejected_auth"
)

// AuditLogEntry is one immutable decision record. Entries are append-only;
// nothing in this system updates or deletes them after the write.
type AuditLogEntry struct {
	ID           string
	Tenant       string
	ObjectType   string
	ObjectID     string
	Action       string
	Actor        string
	ActorRole    string
	PriorState   string
	ResultState  string
	Outcome      AuditOutcome
	Reason       string
	ErrorMessage string
	RequestID    string
	Source       string
	ObjectData   map[string]any
	Metadata     map[string]any
	CreatedAt    time.Time
}

type AuditState string

const (
	AuditStateRecorded AuditState = "recorded"
	AuditStateDegraded AuditState = "degraded"
)

// ApprovalResult reports the outcome of one decision. AuditState is degraded
// when the backend transition applied but the audit write failed; the backend
// change is never reversed in that case.
type ApprovalResult struct {
	Object       ApprovableObject
	Outcome      AuditOutcome
	AuditEntryID string
	AuditState   AuditState
	AuditError   string
}

type AuditFilter struct {
	Tenant     string
	ObjectType string
	ObjectID   string
	Actor      string
	Action     string
	Outcome    AuditOutcome
	From       *time.Time
	To         *time.Time
	Page       int
	PerPage    int
}

type AuditPage struct {
	Items   []AuditLogEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type PendingQuery struct {
	Tenant     string
	ObjectType string
	Limit      int
}

type BackendHealth struct {
	Tenant     string
	Family     string
	Healthy    bool
	Error      string
	DurationMS int64
}
