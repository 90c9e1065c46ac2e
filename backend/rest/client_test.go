package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-approvals/backend/devkit"
	"github.com/goliatone/go-approvals/core"
)

type restCall struct {
	doctype string
	name    string
	body    map[string]any
}

type siteFault struct {
	status int
	exc    string
	// move mutates the document before the fault is answered, simulating
	// a concurrent decision winning the race.
	move map[string]any
}

// fakeSite emulates the document API: token auth, resource CRUD with a tiny
// in-memory store, list filtering, and whitelisted method calls.
type fakeSite struct {
	t      *testing.T
	server *httptest.Server
	token  string

	putFault     *siteFault
	commentFault *siteFault

	mu       sync.Mutex
	docs     map[string]map[string]map[string]any
	puts     []restCall
	comments []map[string]any
	lastList url.Values
	pings    int
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	f := &fakeSite{
		t:     t,
		token: "key:s3cr3t",
		docs: map[string]map[string]map[string]any{
			"Purchase Invoice":  {},
			"Expense Claim":     {},
			"Leave Application": {},
		},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSite) seedInvoice(name string, docstatus int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs["Purchase Invoice"][name] = map[string]any{
		"name":               name,
		"supplier":           "Globex Supply",
		"status":             "Draft",
		"docstatus":          docstatus,
		"grand_total":        1250.5,
		"outstanding_amount": 1250.5,
		"posting_date":       "2026-08-01",
		"due_date":           "2026-08-31",
		"currency":           "USD",
	}
}

func (f *fakeSite) seedExpense(name, approvalStatus string, docstatus int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs["Expense Claim"][name] = map[string]any{
		"name":                 name,
		"employee":             "HR-EMP-00011",
		"employee_name":        "Ana Ruiz",
		"approval_status":      approvalStatus,
		"status":               "Draft",
		"docstatus":            docstatus,
		"total_claimed_amount": 89.9,
		"posting_date":         "2026-08-10",
	}
}

func (f *fakeSite) seedLeave(name, status string, docstatus int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs["Leave Application"][name] = map[string]any{
		"name":             name,
		"employee":         "HR-EMP-00011",
		"employee_name":    "Ana Ruiz",
		"leave_type":       "Paid Time Off",
		"from_date":        "2026-09-01",
		"to_date":          "2026-09-05",
		"total_leave_days": 5.0,
		"status":           status,
		"docstatus":        docstatus,
	}
}

func (f *fakeSite) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "token "+f.token {
		writeJSON(w, http.StatusForbidden, map[string]any{"exc": "AuthenticationError: invalid token"})
		return
	}
	segments := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch {
	case len(segments) >= 3 && segments[0] == "api" && segments[1] == "method":
		f.handleMethod(w, r, strings.Join(segments[2:], "/"))
	case len(segments) == 4 && segments[0] == "api" && segments[1] == "resource":
		f.handleDoc(w, r, segments[2], segments[3])
	case len(segments) == 3 && segments[0] == "api" && segments[1] == "resource":
		f.handleList(w, r, segments[2])
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeSite) handleDoc(w http.ResponseWriter, r *http.Request, doctype, name string) {
	f.mu.Lock()
	doc, ok := f.docs[doctype][name]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"exc": fmt.Sprintf("DoesNotExistError: %s %s not found", doctype, name),
		})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	case http.MethodPut:
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			f.t.Errorf("decode put body: %v", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{"exc": err.Error()})
			return
		}
		f.mu.Lock()
		f.puts = append(f.puts, restCall{doctype: doctype, name: name, body: payload})
		f.mu.Unlock()

		if fault := f.putFault; fault != nil {
			if fault.move != nil {
				f.mu.Lock()
				for key, value := range fault.move {
					doc[key] = value
				}
				f.mu.Unlock()
			}
			writeJSON(w, fault.status, map[string]any{"exc": fault.exc})
			return
		}
		f.mu.Lock()
		for key, value := range payload {
			doc[key] = value
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"exc": "method not allowed"})
	}
}

func (f *fakeSite) handleList(w http.ResponseWriter, r *http.Request, doctype string) {
	query := r.URL.Query()
	f.mu.Lock()
	f.lastList = query
	f.mu.Unlock()

	var filters []any
	if raw := query.Get("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			f.t.Errorf("decode filters: %v", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{"exc": err.Error()})
			return
		}
	}
	limit, _ := strconv.Atoi(query.Get("limit_page_length"))

	f.mu.Lock()
	out := []any{}
	for _, doc := range f.docs[doctype] {
		if limit > 0 && len(out) >= limit {
			break
		}
		if filtersMatch(doc, filters) {
			out = append(out, doc)
		}
	}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (f *fakeSite) handleMethod(w http.ResponseWriter, r *http.Request, method string) {
	switch method {
	case pingMethod:
		f.mu.Lock()
		f.pings++
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"message": "pong"})
	case "frappe.desk.form.utils.add_comment":
		var args map[string]any
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			f.t.Errorf("decode comment args: %v", err)
			writeJSON(w, http.StatusBadRequest, map[string]any{"exc": err.Error()})
			return
		}
		if fault := f.commentFault; fault != nil {
			writeJSON(w, fault.status, map[string]any{"exc": fault.exc})
			return
		}
		f.mu.Lock()
		f.comments = append(f.comments, args)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"message": map[string]any{"name": "comment-1"}})
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"exc": "method " + method + " not found"})
	}
}

func filtersMatch(doc map[string]any, filters []any) bool {
	for _, raw := range filters {
		clause, ok := raw.([]any)
		if !ok || len(clause) != 3 {
			return false
		}
		field, _ := clause[0].(string)
		op, _ := clause[1].(string)
		if op != "=" {
			return false
		}
		if fmt.Sprint(doc[field]) != fmt.Sprint(clause[2]) {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func newSiteClient(t *testing.T, f *fakeSite) *Client {
	t.Helper()
	built, err := New(Config{}).NewClient(core.BackendProfile{
		Tenant: "nova",
		Family: Family,
		Host:   f.server.URL,
	}, core.Secret(f.token))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client, ok := built.(*Client)
	if !ok {
		t.Fatalf("expected *Client, got %T", built)
	}
	return client
}

func TestNewClientValidatesProfile(t *testing.T) {
	dialect := New(Config{})
	tests := []struct {
		name       string
		profile    core.BackendProfile
		credential core.Secret
	}{
		{
			name:       "missing host",
			profile:    core.BackendProfile{Tenant: "nova", Family: Family},
			credential: "key:s3cr3t",
		},
		{
			name:       "credential without separator",
			profile:    core.BackendProfile{Tenant: "nova", Family: Family, Host: "https://erp.nova.test"},
			credential: "keyonly",
		},
		{
			name:       "credential with empty secret",
			profile:    core.BackendProfile{Tenant: "nova", Family: Family, Host: "https://erp.nova.test"},
			credential: "key: ",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := dialect.NewClient(tc.profile, tc.credential); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFetchObjectMapsDocstatus(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	fake.seedInvoice("ACC-PINV-0008", 1)
	fake.seedInvoice("ACC-PINV-0009", 2)
	client := newSiteClient(t, fake)

	object, err := client.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0007")
	if err != nil {
		t.Fatalf("fetch draft invoice: %v", err)
	}
	if object.State != core.ObjectStatePending {
		t.Fatalf("expected pending, got %q", object.State)
	}
	if object.DisplayName != "ACC-PINV-0007" || object.Tenant != "nova" {
		t.Fatalf("unexpected identity: %+v", object)
	}
	if object.Amount == nil || *object.Amount != 1250.5 {
		t.Fatalf("unexpected amount %v", object.Amount)
	}
	if object.Currency != "USD" {
		t.Fatalf("unexpected currency %q", object.Currency)
	}

	submitted, err := client.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0008")
	if err != nil {
		t.Fatalf("fetch submitted invoice: %v", err)
	}
	if submitted.State != core.ObjectStateApproved {
		t.Fatalf("expected approved, got %q", submitted.State)
	}

	cancelled, err := client.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0009")
	if err != nil {
		t.Fatalf("fetch cancelled invoice: %v", err)
	}
	if cancelled.State != core.ObjectStateRejected {
		t.Fatalf("expected rejected, got %q", cancelled.State)
	}
}

func TestFetchObjectExpenseStatuses(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedExpense("HR-EXP-0012", "Draft", 0)
	fake.seedExpense("HR-EXP-0013", "Rejected", 1)
	fake.seedExpense("HR-EXP-0014", "Approved", 2) // cancelled overrides the status field
	client := newSiteClient(t, fake)

	draft, err := client.FetchObject(context.Background(), core.ObjectTypeExpense, "HR-EXP-0012")
	if err != nil {
		t.Fatalf("fetch draft expense: %v", err)
	}
	if draft.State != core.ObjectStatePending {
		t.Fatalf("expected pending, got %q", draft.State)
	}

	rejected, err := client.FetchObject(context.Background(), core.ObjectTypeExpense, "HR-EXP-0013")
	if err != nil {
		t.Fatalf("fetch rejected expense: %v", err)
	}
	if rejected.State != core.ObjectStateRejected {
		t.Fatalf("expected rejected, got %q", rejected.State)
	}

	cancelled, err := client.FetchObject(context.Background(), core.ObjectTypeExpense, "HR-EXP-0014")
	if err != nil {
		t.Fatalf("fetch cancelled expense: %v", err)
	}
	if cancelled.State != core.ObjectStateRejected {
		t.Fatalf("expected rejected for docstatus 2, got %q", cancelled.State)
	}
}

func TestFetchObjectNotFound(t *testing.T) {
	fake := newFakeSite(t)
	client := newSiteClient(t, fake)

	_, err := client.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0404")
	var notFound *core.ObjectNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ObjectNotFoundError, got %T: %v", err, err)
	}
	if notFound.ObjectID != "ACC-PINV-0404" || notFound.Tenant != "nova" {
		t.Fatalf("unexpected not-found detail: %+v", notFound)
	}
}

func TestFetchObjectBadToken(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	built, err := New(Config{}).NewClient(core.BackendProfile{
		Tenant: "nova",
		Family: Family,
		Host:   fake.server.URL,
	}, "key:wrong")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = built.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0007")
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors envelope, got %T: %v", err, err)
	}
	if richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", richErr.Category)
	}
	if richErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", richErr.Code)
	}
}

func TestFetchObjectTransportFailure(t *testing.T) {
	fake := newFakeSite(t)
	client := newSiteClient(t, fake)
	fake.server.Close()

	_, err := client.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0007")
	var unavailable *core.BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected BackendUnavailableError, got %T: %v", err, err)
	}
	if unavailable.Family != Family {
		t.Fatalf("unexpected family %q", unavailable.Family)
	}
}

func TestFetchObjectServerErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream maintenance", http.StatusBadGateway)
	}))
	defer server.Close()

	built, err := New(Config{}).NewClient(core.BackendProfile{
		Tenant: "nova",
		Family: Family,
		Host:   server.URL,
	}, "key:s3cr3t")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = built.FetchObject(context.Background(), core.ObjectTypeInvoice, "ACC-PINV-0007")
	var unavailable *core.BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected BackendUnavailableError, got %T: %v", err, err)
	}
}

func TestApplyTransitionApprovesInvoice(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	client := newSiteClient(t, fake)

	object, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeInvoice,
		ObjectID:      "ACC-PINV-0007",
		Action:        core.ActionApprove,
		ExpectedState: core.ObjectStatePending,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if object.State != core.ObjectStateApproved {
		t.Fatalf("expected approved, got %q", object.State)
	}

	fake.mu.Lock()
	puts := fake.puts
	fake.mu.Unlock()
	if len(puts) != 1 {
		t.Fatalf("expected one update, got %d", len(puts))
	}
	if puts[0].doctype != "Purchase Invoice" || puts[0].name != "ACC-PINV-0007" {
		t.Fatalf("unexpected update target: %+v", puts[0])
	}
	if docstatus, _ := puts[0].body["docstatus"].(float64); int(docstatus) != 1 {
		t.Fatalf("expected docstatus 1 in payload, got %v", puts[0].body)
	}
}

func TestApplyTransitionRejectPostsComment(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedExpense("HR-EXP-0012", "Draft", 0)
	client := newSiteClient(t, fake)

	object, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeExpense,
		ObjectID:      "HR-EXP-0012",
		Action:        core.ActionReject,
		Reason:        "missing receipt",
		ExpectedState: core.ObjectStatePending,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if object.State != core.ObjectStateRejected {
		t.Fatalf("expected rejected, got %q", object.State)
	}

	fake.mu.Lock()
	puts := fake.puts
	comments := fake.comments
	fake.mu.Unlock()
	if len(puts) != 1 {
		t.Fatalf("expected one update, got %d", len(puts))
	}
	if status, _ := puts[0].body["approval_status"].(string); status != "Rejected" {
		t.Fatalf("expected approval_status Rejected, got %v", puts[0].body)
	}
	if len(comments) != 1 {
		t.Fatalf("expected one comment, got %d", len(comments))
	}
	comment := comments[0]
	if comment["reference_doctype"] != "Expense Claim" || comment["reference_name"] != "HR-EXP-0012" {
		t.Fatalf("unexpected comment target: %v", comment)
	}
	if comment["content"] != "Rejected: missing receipt" {
		t.Fatalf("unexpected comment content %v", comment["content"])
	}
}

func TestApplyTransitionPreCheckConflict(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedLeave("HR-LAP-0003", "Approved", 1)
	client := newSiteClient(t, fake)

	_, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeLeave,
		ObjectID:      "HR-LAP-0003",
		Action:        core.ActionApprove,
		ExpectedState: core.ObjectStatePending,
	})
	var conflict *core.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %T: %v", err, err)
	}
	if conflict.State != core.ObjectStateApproved {
		t.Fatalf("expected observed state approved, got %q", conflict.State)
	}
	fake.mu.Lock()
	puts := len(fake.puts)
	fake.mu.Unlock()
	if puts != 0 {
		t.Fatalf("expected no updates, got %d", puts)
	}
}

func TestApplyTransitionFaultAfterConcurrentMove(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	// the update loses a race: the refusal arrives with the document
	// already moved by the competing decision
	fake.putFault = &siteFault{
		status: http.StatusExpectationFailed,
		exc:    "TimestampMismatchError: document has been modified",
		move:   map[string]any{"docstatus": 1},
	}
	client := newSiteClient(t, fake)

	_, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeInvoice,
		ObjectID:      "ACC-PINV-0007",
		Action:        core.ActionReject,
		ExpectedState: core.ObjectStatePending,
	})
	var conflict *core.StateConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StateConflictError, got %T: %v", err, err)
	}
	if conflict.State != core.ObjectStateApproved {
		t.Fatalf("expected observed state approved, got %q", conflict.State)
	}
}

func TestApplyTransitionFaultWithoutMove(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	fake.putFault = &siteFault{
		status: http.StatusExpectationFailed,
		exc:    "ValidationError: fiscal period is locked",
	}
	client := newSiteClient(t, fake)

	_, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeInvoice,
		ObjectID:      "ACC-PINV-0007",
		Action:        core.ActionApprove,
		ExpectedState: core.ObjectStatePending,
	})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors envelope, got %T: %v", err, err)
	}
	if richErr.Category != goerrors.CategoryOperation {
		t.Fatalf("expected operation category, got %q", richErr.Category)
	}
	if richErr.TextCode != core.ApprovalErrorBackendFailed {
		t.Fatalf("unexpected text code %q", richErr.TextCode)
	}
	if richErr.Metadata["doctype"] != "Purchase Invoice" {
		t.Fatalf("expected doctype metadata, got %v", richErr.Metadata)
	}
}

func TestApplyTransitionPermissionDenied(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	fake.putFault = &siteFault{
		status: http.StatusForbidden,
		exc:    "PermissionError: not permitted to submit",
	}
	client := newSiteClient(t, fake)

	_, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeInvoice,
		ObjectID:      "ACC-PINV-0007",
		Action:        core.ActionApprove,
		ExpectedState: core.ObjectStatePending,
	})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected go-errors envelope, got %T: %v", err, err)
	}
	if richErr.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", richErr.Category)
	}
	if richErr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", richErr.Code)
	}
}

func TestApplyTransitionCommentFailureDoesNotUnwind(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedLeave("HR-LAP-0003", "Open", 0)
	fake.commentFault = &siteFault{
		status: http.StatusForbidden,
		exc:    "PermissionError: not permitted to comment",
	}
	client := newSiteClient(t, fake)

	object, err := client.ApplyTransition(context.Background(), core.TransitionRequest{
		ObjectType:    core.ObjectTypeLeave,
		ObjectID:      "HR-LAP-0003",
		Action:        core.ActionReject,
		Reason:        "overlapping booking",
		ExpectedState: core.ObjectStatePending,
	})
	if err != nil {
		t.Fatalf("a failed comment must not unwind the transition: %v", err)
	}
	if object.State != core.ObjectStateRejected {
		t.Fatalf("expected rejected, got %q", object.State)
	}
}

func TestListPendingBuildsQuery(t *testing.T) {
	fake := newFakeSite(t)
	fake.seedInvoice("ACC-PINV-0007", 0)
	fake.seedInvoice("ACC-PINV-0008", 1)
	fake.seedInvoice("ACC-PINV-0009", 0)
	client := newSiteClient(t, fake)

	items, err := client.ListPending(context.Background(), core.ObjectTypeInvoice, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 pending invoices, got %d", len(items))
	}
	for _, item := range items {
		if item.State != core.ObjectStatePending {
			t.Fatalf("expected pending, got %q for %s", item.State, item.ID)
		}
		if item.ID == "" {
			t.Fatalf("expected document name as id: %+v", item)
		}
	}

	fake.mu.Lock()
	query := fake.lastList
	fake.mu.Unlock()
	if query.Get("limit_page_length") != "10" {
		t.Fatalf("expected limit_page_length 10, got %q", query.Get("limit_page_length"))
	}
	if query.Get("limit_start") != "0" {
		t.Fatalf("expected limit_start 0, got %q", query.Get("limit_start"))
	}
	if query.Get("order_by") != "modified desc" {
		t.Fatalf("expected order_by %q, got %q", "modified desc", query.Get("order_by"))
	}
	var filters []any
	if err := json.Unmarshal([]byte(query.Get("filters")), &filters); err != nil {
		t.Fatalf("decode filters: %v", err)
	}
	if len(filters) != 1 {
		t.Fatalf("expected one filter clause, got %v", filters)
	}
	var fields []string
	if err := json.Unmarshal([]byte(query.Get("fields")), &fields); err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(fields) != len(invoiceDocMapping.fields) {
		t.Fatalf("expected %d fields, got %v", len(invoiceDocMapping.fields), fields)
	}
}

func TestListPendingDefaultsLimit(t *testing.T) {
	fake := newFakeSite(t)
	client := newSiteClient(t, fake)

	if _, err := client.ListPending(context.Background(), core.ObjectTypeLeave, 0); err != nil {
		t.Fatalf("list pending: %v", err)
	}
	fake.mu.Lock()
	query := fake.lastList
	fake.mu.Unlock()
	if query.Get("limit_page_length") != "50" {
		t.Fatalf("expected default limit 50, got %q", query.Get("limit_page_length"))
	}
}

func TestPing(t *testing.T) {
	fake := newFakeSite(t)
	client := newSiteClient(t, fake)

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	fake.mu.Lock()
	pings := fake.pings
	fake.mu.Unlock()
	if pings != 1 {
		t.Fatalf("expected one ping, got %d", pings)
	}
}

func TestDialectConformance(t *testing.T) {
	fake := newFakeSite(t)
	client := newSiteClient(t, fake)

	nextID := 100
	harness := devkit.Harness{
		Client: client,
		Seed: func(objectType string, state core.ObjectState) string {
			if objectType != core.ObjectTypeInvoice {
				t.Fatalf("battery seeded unexpected type %q", objectType)
			}
			docstatus := 0
			if state == core.ObjectStateApproved {
				docstatus = 1
			}
			nextID++
			name := fmt.Sprintf("ACC-PINV-%04d", nextID)
			fake.seedInvoice(name, docstatus)
			return name
		},
		MissingID: "ACC-PINV-9999",
	}
	if err := devkit.ValidateClientConformance(context.Background(), harness, core.ObjectTypeInvoice); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}

func TestDocMappingStateOf(t *testing.T) {
	tests := []struct {
		mapping docMapping
		record  map[string]any
		want    core.ObjectState
	}{
		{invoiceDocMapping, map[string]any{"docstatus": 0.0}, core.ObjectStatePending},
		{invoiceDocMapping, map[string]any{"docstatus": 1.0}, core.ObjectStateApproved},
		{invoiceDocMapping, map[string]any{"docstatus": 2.0}, core.ObjectStateRejected},
		{expenseDocMapping, map[string]any{"approval_status": "Draft", "docstatus": 0.0}, core.ObjectStatePending},
		{expenseDocMapping, map[string]any{"approval_status": "Approved", "docstatus": 1.0}, core.ObjectStateApproved},
		{expenseDocMapping, map[string]any{"approval_status": "Approved", "docstatus": 2.0}, core.ObjectStateRejected},
		{leaveDocMapping, map[string]any{"status": "Open", "docstatus": 0.0}, core.ObjectStatePending},
		{leaveDocMapping, map[string]any{"status": "Cancelled", "docstatus": 1.0}, core.ObjectStateRejected},
		{leaveDocMapping, map[string]any{"status": "On Hold", "docstatus": 0.0}, core.ObjectState("on hold")},
	}
	for _, tc := range tests {
		if got := tc.mapping.stateOf(tc.record); got != tc.want {
			t.Fatalf("stateOf(%v) on %s = %q, want %q", tc.record, tc.mapping.doctype, got, tc.want)
		}
	}
}

func TestDocMappingForUnknownType(t *testing.T) {
	if _, err := docMappingFor("sales_order"); err == nil {
		t.Fatalf("expected error for unknown object type")
	}
	mapping, err := docMappingFor(" Leave ")
	if err != nil {
		t.Fatalf("expected trimmed case-insensitive lookup: %v", err)
	}
	if mapping.doctype != "Leave Application" {
		t.Fatalf("unexpected doctype %q", mapping.doctype)
	}
}
