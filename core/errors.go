package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ApprovalErrorBadInput           = "APPROVALS_BAD_INPUT"
	ApprovalErrorUnknownTenant      = "APPROVALS_UNKNOWN_TENANT"
	ApprovalErrorObjectNotFound     = "APPROVALS_OBJECT_NOT_FOUND"
	ApprovalErrorAlreadyDecided     = "APPROVALS_ALREADY_DECIDED"
	ApprovalErrorUnauthenticated    = "APPROVALS_UNAUTHENTICATED"
	ApprovalErrorForbidden          = "APPROVALS_FORBIDDEN"
	ApprovalErrorBackendUnavailable = "APPROVALS_BACKEND_UNAVAILABLE"
	ApprovalErrorBackendFailed      = "APPROVALS_BACKEND_OPERATION_FAILED"
	ApprovalErrorUnsupported        = "APPROVALS_OPERATION_UNSUPPORTED"
	ApprovalErrorRateLimited        = "APPROVALS_RATE_LIMITED"
	ApprovalErrorAuditWriteFailed   = "APPROVALS_AUDIT_WRITE_FAILED"
	ApprovalErrorInternal           = "APPROVALS_INTERNAL_ERROR"
)

// ObjectNotFoundError reports a fetch miss against an authoritative backend.
type ObjectNotFoundError struct {
	Tenant     string
	ObjectType string
	ObjectID   string
	Cause      error
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("object %s/%s not found for tenant %q", e.ObjectType, e.ObjectID, e.Tenant)
}

func (e *ObjectNotFoundError) Unwrap() error { return e.Cause }

func (e *ObjectNotFoundError) ToServiceError() *goerrors.Error {
	return ensureApprovalErrorEnvelope(
		goerrors.New(e.Error(), goerrors.CategoryNotFound).
			WithTextCode(ApprovalErrorObjectNotFound).
			WithMetadata(map[string]any{
				"tenant":      e.Tenant,
				"object_type": e.ObjectType,
				"object_id":   e.ObjectID,
			}),
	)
}

// StateConflictError reports a decision attempted against a non-pending
// object, whether caught by the optimistic pre-check or by the backend's own
// re-check during apply.
type StateConflictError struct {
	Tenant     string
	ObjectType string
	ObjectID   string
	State      ObjectState
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("object %s/%s is %s, only pending objects accept decisions", e.ObjectType, e.ObjectID, e.State)
}

func (e *StateConflictError) ToServiceError() *goerrors.Error {
	return ensureApprovalErrorEnvelope(
		goerrors.New(e.Error(), goerrors.CategoryConflict).
			WithTextCode(ApprovalErrorAlreadyDecided).
			WithMetadata(map[string]any{
				"tenant":        e.Tenant,
				"object_type":   e.ObjectType,
				"object_id":     e.ObjectID,
				"current_state": string(e.State),
			}),
	)
}

// BackendUnavailableError reports a timeout or connectivity failure talking
// to a backend. Decisions that hit it are never retried internally.
type BackendUnavailableError struct {
	Tenant string
	Family string
	Cause  error
}

func (e *BackendUnavailableError) Error() string {
	return fmt.Sprintf("backend for tenant %q (%s) unavailable: %v", e.Tenant, e.Family, e.Cause)
}

func (e *BackendUnavailableError) Unwrap() error { return e.Cause }

func (e *BackendUnavailableError) ToServiceError() *goerrors.Error {
	return ensureApprovalErrorEnvelope(
		goerrors.New(e.Error(), goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(ApprovalErrorBackendUnavailable).
			WithMetadata(map[string]any{
				"tenant": e.Tenant,
				"family": e.Family,
			}),
	)
}

func approvalErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureApprovalErrorEnvelope(richErr)
	}

	var notFound *ObjectNotFoundError
	if errors.As(err, &notFound) {
		return notFound.ToServiceError()
	}
	var conflict *StateConflictError
	if errors.As(err, &conflict) {
		return conflict.ToServiceError()
	}
	var unavailable *BackendUnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.ToServiceError()
	}
	var unknownTenant *UnknownTenantError
	if errors.As(err, &unknownTenant) {
		return unknownTenant.ToServiceError()
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "unknown tenant"):
		return newApprovalError(err.Error(), goerrors.CategoryValidation, ApprovalErrorUnknownTenant)
	case strings.Contains(msg, "not found"):
		return newApprovalError(err.Error(), goerrors.CategoryNotFound, ApprovalErrorObjectNotFound)
	case strings.Contains(msg, "only pending"), strings.Contains(msg, "already"):
		return newApprovalError(err.Error(), goerrors.CategoryConflict, ApprovalErrorAlreadyDecided)
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "unavailable"), strings.Contains(msg, "connection refused"):
		return newApprovalError(err.Error(), goerrors.CategoryExternal, ApprovalErrorBackendUnavailable)
	case strings.Contains(msg, "forbidden"), strings.Contains(msg, "not permitted"):
		return newApprovalError(err.Error(), goerrors.CategoryAuthz, ApprovalErrorForbidden)
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "authentication"):
		return newApprovalError(err.Error(), goerrors.CategoryAuth, ApprovalErrorUnauthenticated)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newApprovalError(err.Error(), goerrors.CategoryBadInput, ApprovalErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureApprovalErrorEnvelope(mapped)
}

func newApprovalError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureApprovalErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureApprovalErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = ApprovalHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultApprovalTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultApprovalTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ApprovalErrorBadInput
	case goerrors.CategoryNotFound:
		return ApprovalErrorObjectNotFound
	case goerrors.CategoryAuth:
		return ApprovalErrorUnauthenticated
	case goerrors.CategoryAuthz:
		return ApprovalErrorForbidden
	case goerrors.CategoryConflict:
		return ApprovalErrorAlreadyDecided
	case goerrors.CategoryRateLimit:
		return ApprovalErrorRateLimited
	case goerrors.CategoryExternal:
		return ApprovalErrorBackendUnavailable
	case goerrors.CategoryOperation:
		return ApprovalErrorBackendFailed
	default:
		return ApprovalErrorInternal
	}
}

// ApprovalHTTPStatus maps an error category to the status boundary layers
// should respond with.
func ApprovalHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
