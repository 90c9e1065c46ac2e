package httpd_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/goliatone/go-approvals/core"
)

func TestDecide_AppliesAndReportsAuditState(t *testing.T) {
	var captured core.ApprovalRequest
	amount := 99.5
	svc := &stubService{
		decideFn: func(_ context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
			captured = req
			return core.ApprovalResult{
				Object: core.ApprovableObject{
					ID:       req.ObjectID,
					Type:     req.ObjectType,
					Tenant:   req.Tenant,
					State:    core.ObjectStateApproved,
					Amount:   &amount,
					Currency: "EUR",
				},
				Outcome:      core.OutcomeApplied,
				AuditEntryID: "audit-7",
				AuditState:   core.AuditStateRecorded,
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	body := `{"action":"approve","actor":"ana@acme.example","actorRole":"manager","reason":"within budget"}`
	recorder := doRequest(router, http.MethodPost, "/approvals/invoice/123?tenant=tln_db", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	if captured.Tenant != "tln_db" || captured.ObjectType != "invoice" || captured.ObjectID != "123" {
		t.Fatalf("unexpected routed request: %#v", captured)
	}
	if captured.Action != core.ActionApprove || captured.Actor != "ana@acme.example" {
		t.Fatalf("body fields not mapped: %#v", captured)
	}
	if captured.RequestID == "" {
		t.Fatalf("expected the canonical request id to ride into the service call")
	}
	if captured.Metadata["auth_key_id"] != "primary" {
		t.Fatalf("expected authenticated key id in metadata, got %#v", captured.Metadata)
	}

	var payload struct {
		Object struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"object"`
		Outcome string `json:"outcome"`
		Audit   struct {
			State   string `json:"state"`
			EntryID string `json:"entryId"`
		} `json:"audit"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Object.ID != "123" || payload.Object.State != string(core.ObjectStateApproved) {
		t.Fatalf("unexpected object payload: %+v", payload.Object)
	}
	if payload.Outcome != string(core.OutcomeApplied) || payload.Audit.EntryID != "audit-7" {
		t.Fatalf("unexpected outcome payload: %+v", payload)
	}
	if payload.Audit.State != string(core.AuditStateRecorded) {
		t.Fatalf("unexpected audit state: %+v", payload.Audit)
	}
}

func TestDecide_DegradedAuditStillSucceeds(t *testing.T) {
	svc := &stubService{
		decideFn: func(_ context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
			return core.ApprovalResult{
				Object:     core.ApprovableObject{ID: req.ObjectID, State: core.ObjectStateRejected},
				Outcome:    core.OutcomeApplied,
				AuditState: core.AuditStateDegraded,
				AuditError: "audit store unreachable",
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	body := `{"action":"reject","actor":"bo@acme.example","actorRole":"manager","reason":"duplicate"}`
	recorder := doRequest(router, http.MethodPost, "/approvals/expense/55?tenant=ieg_db", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("degraded audit must stay a success, got %d", recorder.Code)
	}

	var payload struct {
		Audit struct {
			State string `json:"state"`
			Error string `json:"error"`
		} `json:"audit"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Audit.State != string(core.AuditStateDegraded) || payload.Audit.Error == "" {
		t.Fatalf("expected degraded audit detail, got %+v", payload.Audit)
	}
}

func TestDecide_MapsTaxonomyToStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name: "state conflict",
			err: &core.StateConflictError{
				Tenant: "tln_db", ObjectType: "invoice", ObjectID: "123",
				State: core.ObjectStateApproved,
			},
			wantStatus: http.StatusConflict,
			wantCode:   core.ApprovalErrorAlreadyDecided,
		},
		{
			name: "not found",
			err: &core.ObjectNotFoundError{
				Tenant: "tln_db", ObjectType: "invoice", ObjectID: "999",
			},
			wantStatus: http.StatusNotFound,
			wantCode:   core.ApprovalErrorObjectNotFound,
		},
		{
			name:       "unknown tenant",
			err:        (&core.UnknownTenantError{Tenant: "xyz_db"}).ToServiceError(),
			wantStatus: http.StatusBadRequest,
			wantCode:   core.ApprovalErrorUnknownTenant,
		},
		{
			name: "backend unavailable",
			err: &core.BackendUnavailableError{
				Tenant: "tln_db", Family: "jsonrpc",
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   core.ApprovalErrorBackendUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{
				decideFn: func(context.Context, core.ApprovalRequest) (core.ApprovalResult, error) {
					return core.ApprovalResult{}, tc.err
				},
			}
			router := newTestRouter(t, svc, nil)

			body := `{"action":"approve","actor":"ana","actorRole":"manager"}`
			recorder := doRequest(router, http.MethodPost, "/approvals/invoice/123?tenant=tln_db", body)
			if recorder.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, recorder.Code, recorder.Body.String())
			}
			var payload struct {
				Code      string `json:"code"`
				RequestID string `json:"requestId"`
			}
			if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if payload.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, payload.Code)
			}
			if payload.RequestID == "" {
				t.Fatalf("error responses must carry the request id")
			}
		})
	}
}

func TestDecide_RejectsMalformedBody(t *testing.T) {
	decided := false
	svc := &stubService{
		decideFn: func(context.Context, core.ApprovalRequest) (core.ApprovalResult, error) {
			decided = true
			return core.ApprovalResult{}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	recorder := doRequest(router, http.MethodPost, "/approvals/invoice/123?tenant=tln_db", `{"action":`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if decided {
		t.Fatalf("malformed payloads must not reach the service")
	}
}

func TestGetObject_ReturnsSnapshot(t *testing.T) {
	svc := &stubService{
		getObjectFn: func(_ context.Context, tenant, objectType, objectID string) (core.ApprovableObject, error) {
			return core.ApprovableObject{
				ID: objectID, Type: objectType, Tenant: tenant,
				State:       core.ObjectStatePending,
				DisplayName: "INV/0042",
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	recorder := doRequest(router, http.MethodGet, "/approvals/invoice/42?tenant=tln_db", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload struct {
		ID          string `json:"id"`
		State       string `json:"state"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "42" || payload.State != string(core.ObjectStatePending) || payload.DisplayName != "INV/0042" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestListPending_PassesQueryThrough(t *testing.T) {
	var captured core.PendingQuery
	svc := &stubService{
		listPendingFn: func(_ context.Context, q core.PendingQuery) ([]core.ApprovableObject, error) {
			captured = q
			return []core.ApprovableObject{
				{ID: "1", Type: "leave", State: core.ObjectStatePending},
				{ID: "2", Type: "leave", State: core.ObjectStatePending},
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	recorder := doRequest(router, http.MethodGet, "/approvals/pending?tenant=hris_db&objectType=leave&limit=5", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if captured.Tenant != "hris_db" || captured.ObjectType != "leave" || captured.Limit != 5 {
		t.Fatalf("unexpected pending query: %#v", captured)
	}
	var payload struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Count != 2 || len(payload.Items) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
