package httpd_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-approvals/auth"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/transport/httpd"
)

const testAPIKey = "sk_test_a1b2c3d4e5f6"

func init() {
	gin.SetMode(gin.TestMode)
}

// stubService answers through overridable function fields so each test
// injects exactly the behavior it exercises.
type stubService struct {
	decideFn      func(ctx context.Context, req core.ApprovalRequest) (core.ApprovalResult, error)
	getObjectFn   func(ctx context.Context, tenant, objectType, objectID string) (core.ApprovableObject, error)
	listPendingFn func(ctx context.Context, q core.PendingQuery) ([]core.ApprovableObject, error)
	listAuditFn   func(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error)
	getAuditFn    func(ctx context.Context, id string) (core.AuditLogEntry, error)
	checkFn       func(ctx context.Context) []core.BackendHealth
}

func (s *stubService) Decide(ctx context.Context, req core.ApprovalRequest) (core.ApprovalResult, error) {
	if s.decideFn == nil {
		return core.ApprovalResult{}, nil
	}
	return s.decideFn(ctx, req)
}

func (s *stubService) GetObject(ctx context.Context, tenant, objectType, objectID string) (core.ApprovableObject, error) {
	if s.getObjectFn == nil {
		return core.ApprovableObject{}, nil
	}
	return s.getObjectFn(ctx, tenant, objectType, objectID)
}

func (s *stubService) ListPending(ctx context.Context, q core.PendingQuery) ([]core.ApprovableObject, error) {
	if s.listPendingFn == nil {
		return nil, nil
	}
	return s.listPendingFn(ctx, q)
}

func (s *stubService) ListAudit(ctx context.Context, filter core.AuditFilter) (core.AuditPage, error) {
	if s.listAuditFn == nil {
		return core.AuditPage{}, nil
	}
	return s.listAuditFn(ctx, filter)
}

func (s *stubService) GetAuditEntry(ctx context.Context, id string) (core.AuditLogEntry, error) {
	if s.getAuditFn == nil {
		return core.AuditLogEntry{}, nil
	}
	return s.getAuditFn(ctx, id)
}

func (s *stubService) CheckBackends(ctx context.Context) []core.BackendHealth {
	if s.checkFn == nil {
		return nil
	}
	return s.checkFn(ctx)
}

var _ core.ApprovalService = (*stubService)(nil)

func newTestRouter(t *testing.T, svc core.ApprovalService, mutate func(*httpd.RouterDeps)) http.Handler {
	t.Helper()
	verifier, err := auth.NewAPIKeyVerifier(auth.APIKeyConfig{
		Keys: []auth.NamedKey{{ID: "primary", Key: core.Secret(testAPIKey)}},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	deps := &httpd.RouterDeps{
		Service:  svc,
		Verifier: verifier,
		Version:  "test",
	}
	if mutate != nil {
		mutate(deps)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	router, err := httpd.NewRouter(ctx, deps)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router
}

// doRequest performs one request with the test API key attached.
func doRequest(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	return doRequestWithKey(router, method, path, body, testAPIKey)
}

func doRequestWithKey(router http.Handler, method, path, body, key string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	if key != "" {
		req.Header.Set(auth.DefaultHeader, key)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func doRequestWithHeader(router http.Handler, method, path, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, http.NoBody)
	req.Header.Set(auth.DefaultHeader, testAPIKey)
	req.Header.Set(header, value)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}
