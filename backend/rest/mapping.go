package rest

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-approvals/core"
)

// docMapping binds one approvable object type to its doctype: which fields
// to request, how docstatus and the per-doctype status field fold into the
// shared vocabulary, and which field updates perform transitions.
type docMapping struct {
	objectType     string
	doctype        string
	fields         []string
	nameField      string
	amountField    string
	currencyField  string
	statusField    string
	statuses       map[string]core.ObjectState
	approvePayload map[string]any
	rejectPayload  map[string]any
	pendingFilters []any
}

var invoiceDocMapping = docMapping{
	objectType: core.ObjectTypeInvoice,
	doctype:    "Purchase Invoice",
	fields: []string{
		"name", "supplier", "status", "docstatus", "grand_total",
		"outstanding_amount", "posting_date", "due_date", "currency",
	},
	nameField:     "name",
	amountField:   "grand_total",
	currencyField: "currency",
	// draft invoices have no approval status of their own; docstatus is
	// the whole state machine
	approvePayload: map[string]any{"docstatus": 1},
	rejectPayload:  map[string]any{"docstatus": 2},
	pendingFilters: []any{[]any{"docstatus", "=", 0}},
}

var expenseDocMapping = docMapping{
	objectType: core.ObjectTypeExpense,
	doctype:    "Expense Claim",
	fields: []string{
		"name", "employee", "employee_name", "approval_status", "status",
		"docstatus", "total_claimed_amount", "total_sanctioned_amount",
		"posting_date",
	},
	nameField:   "name",
	amountField: "total_claimed_amount",
	statusField: "approval_status",
	statuses: map[string]core.ObjectState{
		"draft":    core.ObjectStatePending,
		"approved": core.ObjectStateApproved,
		"rejected": core.ObjectStateRejected,
	},
	approvePayload: map[string]any{"approval_status": "Approved", "docstatus": 1},
	rejectPayload:  map[string]any{"approval_status": "Rejected", "docstatus": 1},
	pendingFilters: []any{
		[]any{"approval_status", "=", "Draft"},
		[]any{"docstatus", "=", 0},
	},
}

var leaveDocMapping = docMapping{
	objectType: core.ObjectTypeLeave,
	doctype:    "Leave Application",
	fields: []string{
		"name", "employee", "employee_name", "leave_type", "from_date",
		"to_date", "total_leave_days", "status", "docstatus",
	},
	nameField:   "name",
	statusField: "status",
	statuses: map[string]core.ObjectState{
		"open":      core.ObjectStatePending,
		"approved":  core.ObjectStateApproved,
		"rejected":  core.ObjectStateRejected,
		"cancelled": core.ObjectStateRejected,
	},
	approvePayload: map[string]any{"status": "Approved", "docstatus": 1},
	rejectPayload:  map[string]any{"status": "Rejected", "docstatus": 1},
	pendingFilters: []any{
		[]any{"status", "=", "Open"},
		[]any{"docstatus", "=", 0},
	},
}

func docMappingFor(objectType string) (docMapping, error) {
	switch strings.TrimSpace(strings.ToLower(objectType)) {
	case core.ObjectTypeInvoice:
		return invoiceDocMapping, nil
	case core.ObjectTypeExpense:
		return expenseDocMapping, nil
	case core.ObjectTypeLeave:
		return leaveDocMapping, nil
	default:
		return docMapping{}, fmt.Errorf("backend/rest: unsupported object type %q", objectType)
	}
}

func (m docMapping) toObject(tenant, objectID string, record map[string]any) core.ApprovableObject {
	object := core.ApprovableObject{
		ID:     objectID,
		Type:   m.objectType,
		Tenant: tenant,
		State:  m.stateOf(record),
		Raw:    record,
	}
	if m.nameField != "" {
		object.DisplayName = stringField(record, m.nameField)
	}
	if m.amountField != "" {
		if amount, ok := floatField(record, m.amountField); ok {
			object.Amount = &amount
		}
	}
	if m.currencyField != "" {
		object.Currency = stringField(record, m.currencyField)
	}
	return object
}

// stateOf folds docstatus and the doctype's status field into the shared
// vocabulary. A cancelled document is rejected no matter what the status
// field says; unknown statuses pass through lowercased so decisions against
// them fail the state check with the observed value intact.
func (m docMapping) stateOf(record map[string]any) core.ObjectState {
	if docstatus, ok := floatField(record, "docstatus"); ok && int(docstatus) == 2 {
		return core.ObjectStateRejected
	}
	if m.statusField == "" {
		docstatus, _ := floatField(record, "docstatus")
		switch int(docstatus) {
		case 0:
			return core.ObjectStatePending
		case 1:
			return core.ObjectStateApproved
		default:
			return core.ObjectState(fmt.Sprintf("docstatus_%d", int(docstatus)))
		}
	}
	status := strings.TrimSpace(strings.ToLower(stringField(record, m.statusField)))
	if state, ok := m.statuses[status]; ok {
		return state
	}
	return core.ObjectState(status)
}

// transitionPayload clones the mapping's update document so callers never
// mutate the shared template.
func (m docMapping) transitionPayload(action core.ApprovalAction) map[string]any {
	template := m.approvePayload
	if action == core.ActionReject {
		template = m.rejectPayload
	}
	payload := make(map[string]any, len(template))
	for key, value := range template {
		payload[key] = value
	}
	return payload
}

func stringField(record map[string]any, field string) string {
	if value, ok := record[field].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func floatField(record map[string]any, field string) (float64, bool) {
	switch value := record[field].(type) {
	case float64:
		return value, true
	case int64:
		return float64(value), true
	case int:
		return float64(value), true
	default:
		return 0, false
	}
}
