package httpd_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/goliatone/go-approvals/core"
)

func TestListAudit_MapsFilterParams(t *testing.T) {
	var captured core.AuditFilter
	svc := &stubService{
		listAuditFn: func(_ context.Context, filter core.AuditFilter) (core.AuditPage, error) {
			captured = filter
			return core.AuditPage{
				Items: []core.AuditLogEntry{{
					ID:        "e-1",
					Tenant:    filter.Tenant,
					ObjectID:  "42",
					Outcome:   core.OutcomeApplied,
					CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
				}},
				Page:    2,
				PerPage: 10,
				Total:   11,
				HasNext: false,
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	path := "/audit?tenant=tln_db&objectType=invoice&objectId=42&actor=ana&action=approve" +
		"&outcome=applied&page=2&limit=10&from=2026-03-01T00:00:00Z&to=2026-03-02T00:00:00Z"
	recorder := doRequest(router, http.MethodGet, path, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}

	if captured.Tenant != "tln_db" || captured.ObjectType != "invoice" || captured.ObjectID != "42" {
		t.Fatalf("object params not mapped: %#v", captured)
	}
	if captured.Actor != "ana" || captured.Action != "approve" || captured.Outcome != core.OutcomeApplied {
		t.Fatalf("actor params not mapped: %#v", captured)
	}
	if captured.Page != 2 || captured.PerPage != 10 {
		t.Fatalf("pagination not mapped: %#v", captured)
	}
	if captured.From == nil || !captured.From.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("from bound not mapped: %#v", captured.From)
	}
	if captured.To == nil || !captured.To.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("to bound not mapped: %#v", captured.To)
	}

	var payload struct {
		Items []struct {
			ID      string `json:"id"`
			Outcome string `json:"outcome"`
		} `json:"items"`
		Page    int  `json:"page"`
		PerPage int  `json:"perPage"`
		Total   int  `json:"total"`
		HasNext bool `json:"hasNext"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "e-1" {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
	if payload.Page != 2 || payload.PerPage != 10 || payload.Total != 11 || payload.HasNext {
		t.Fatalf("unexpected page envelope: %+v", payload)
	}
}

func TestListAudit_RejectsMalformedTimeBounds(t *testing.T) {
	listed := false
	svc := &stubService{
		listAuditFn: func(context.Context, core.AuditFilter) (core.AuditPage, error) {
			listed = true
			return core.AuditPage{}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	for _, param := range []string{"from", "to"} {
		recorder := doRequest(router, http.MethodGet, fmt.Sprintf("/audit?%s=yesterday", param), "")
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s=yesterday: expected 400, got %d", param, recorder.Code)
		}
		var payload struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode error body: %v", err)
		}
		if payload.Code != core.ApprovalErrorBadInput {
			t.Fatalf("expected %s, got %q", core.ApprovalErrorBadInput, payload.Code)
		}
	}
	if listed {
		t.Fatalf("malformed time bounds must not reach the service")
	}
}

func TestGetAuditEntry_ReturnsEntry(t *testing.T) {
	svc := &stubService{
		getAuditFn: func(_ context.Context, id string) (core.AuditLogEntry, error) {
			return core.AuditLogEntry{
				ID:          id,
				Tenant:      "tln_db",
				ObjectType:  "invoice",
				ObjectID:    "42",
				Action:      "approve",
				Actor:       "ana@acme.example",
				PriorState:  "pending",
				ResultState: "approved",
				Outcome:     core.OutcomeApplied,
				CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			}, nil
		},
	}
	router := newTestRouter(t, svc, nil)

	recorder := doRequest(router, http.MethodGet, "/audit/e-99", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload struct {
		ID          string `json:"id"`
		PriorState  string `json:"priorState"`
		ResultState string `json:"resultState"`
		Outcome     string `json:"outcome"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "e-99" || payload.PriorState != "pending" || payload.ResultState != "approved" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Outcome != string(core.OutcomeApplied) {
		t.Fatalf("unexpected outcome: %q", payload.Outcome)
	}
}

func TestGetAuditEntry_UnknownIDIsNotFound(t *testing.T) {
	svc := &stubService{
		getAuditFn: func(_ context.Context, id string) (core.AuditLogEntry, error) {
			return core.AuditLogEntry{}, &core.ObjectNotFoundError{ObjectType: "audit_entry", ObjectID: id}
		},
	}
	router := newTestRouter(t, svc, nil)

	recorder := doRequest(router, http.MethodGet, "/audit/missing", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
