package jsonrpc

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-approvals/core"
)

// objectMapping binds one approvable object type to its remote model: which
// fields to read, which field carries the workflow state, how raw states fold
// into the shared vocabulary, and which remote methods perform transitions.
type objectMapping struct {
	objectType     string
	model          string
	fields         []string
	stateField     string
	nameField      string
	amountField    string
	currencyField  string
	states         map[string]core.ObjectState
	approveMethods []string
	rejectMethods  []string
	pendingDomain  []any
	rejectNote     bool
}

var invoiceMapping = objectMapping{
	objectType: core.ObjectTypeInvoice,
	model:      "account.move",
	fields: []string{
		"name", "state", "move_type", "amount_total", "amount_residual",
		"partner_id", "invoice_date", "invoice_date_due", "currency_id",
	},
	stateField:    "state",
	nameField:     "name",
	amountField:   "amount_total",
	currencyField: "currency_id",
	states: map[string]core.ObjectState{
		"draft":  core.ObjectStatePending,
		"posted": core.ObjectStateApproved,
		"cancel": core.ObjectStateRejected,
	},
	approveMethods: []string{"action_post"},
	rejectMethods:  []string{"button_cancel"},
	pendingDomain:  []any{[]any{"state", "=", "draft"}},
	rejectNote:     true,
}

var expenseMapping = objectMapping{
	objectType: core.ObjectTypeExpense,
	model:      "hr.expense",
	fields: []string{
		"name", "state", "total_amount", "employee_id", "date", "description",
	},
	stateField:  "state",
	nameField:   "name",
	amountField: "total_amount",
	states: map[string]core.ObjectState{
		"draft":    core.ObjectStatePending,
		"reported": core.ObjectStatePending,
		"approved": core.ObjectStateApproved,
		"done":     core.ObjectStateApproved,
		"refused":  core.ObjectStateRejected,
	},
	approveMethods: []string{"action_submit_expenses", "action_approve_expense_sheets"},
	rejectMethods:  []string{"action_refuse_expense_sheets"},
	pendingDomain:  []any{[]any{"state", "in", []any{"draft", "reported"}}},
}

var leaveMapping = objectMapping{
	objectType: core.ObjectTypeLeave,
	model:      "hr.leave",
	fields: []string{
		"display_name", "state", "employee_id", "date_from", "date_to",
		"number_of_days", "holiday_status_id",
	},
	stateField: "state",
	nameField:  "display_name",
	states: map[string]core.ObjectState{
		"confirm":   core.ObjectStatePending,
		"validate1": core.ObjectStatePending,
		"validate":  core.ObjectStateApproved,
		"refuse":    core.ObjectStateRejected,
		"cancel":    core.ObjectStateRejected,
	},
	approveMethods: []string{"action_approve"},
	rejectMethods:  []string{"action_refuse"},
	pendingDomain:  []any{[]any{"state", "=", "confirm"}},
}

func mappingFor(objectType string) (objectMapping, error) {
	switch strings.TrimSpace(strings.ToLower(objectType)) {
	case core.ObjectTypeInvoice:
		return invoiceMapping, nil
	case core.ObjectTypeExpense:
		return expenseMapping, nil
	case core.ObjectTypeLeave:
		return leaveMapping, nil
	default:
		return objectMapping{}, fmt.Errorf("backend/jsonrpc: unsupported object type %q", objectType)
	}
}

func (m objectMapping) toObject(tenant, objectID string, record map[string]any) core.ApprovableObject {
	object := core.ApprovableObject{
		ID:     objectID,
		Type:   m.objectType,
		Tenant: tenant,
		State:  m.normalizeState(record[m.stateField]),
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
		object.Currency = pairLabel(record[m.currencyField])
	}
	return object
}

// normalizeState folds a raw backend state into the shared vocabulary. States
// outside the mapping pass through lowercased: they are by definition not
// pending, so decisions against them fail the state check with the observed
// value intact.
func (m objectMapping) normalizeState(raw any) core.ObjectState {
	state := strings.TrimSpace(strings.ToLower(fmt.Sprint(raw)))
	if normalized, ok := m.states[state]; ok {
		return normalized
	}
	return core.ObjectState(state)
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

// pairLabel unpacks the [id, label] pairs relational fields are serialized
// as, e.g. currency_id = [2, "USD"].
func pairLabel(raw any) string {
	pair, ok := raw.([]any)
	if !ok || len(pair) < 2 {
		return ""
	}
	label, ok := pair[1].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(label)
}
