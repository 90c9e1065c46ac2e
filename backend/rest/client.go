package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-approvals/core"
)

// Client talks to one tenant's site. Authentication is a stateless token
// header, so a client is safe for concurrent use with no session to guard.
type Client struct {
	tenant    string
	baseURL   string
	token     core.Secret
	doer      HTTPDoer
	bodyLimit int64
	logger    core.Logger
}

func (c *Client) Family() string { return Family }

func (c *Client) Tenant() string { return c.tenant }

func (c *Client) FetchObject(ctx context.Context, objectType, objectID string) (core.ApprovableObject, error) {
	mapping, err := docMappingFor(objectType)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	record, err := c.getDoc(ctx, mapping, objectID)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	return mapping.toObject(c.tenant, objectID, record), nil
}

func (c *Client) ApplyTransition(ctx context.Context, req core.TransitionRequest) (core.ApprovableObject, error) {
	mapping, err := docMappingFor(req.ObjectType)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	expected := req.ExpectedState
	if expected == "" {
		expected = core.ObjectStatePending
	}

	record, err := c.getDoc(ctx, mapping, req.ObjectID)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	if current := mapping.stateOf(record); current != expected {
		return core.ApprovableObject{}, &core.StateConflictError{
			Tenant:     c.tenant,
			ObjectType: req.ObjectType,
			ObjectID:   req.ObjectID,
			State:      current,
		}
	}

	payload := mapping.transitionPayload(req.Action)
	if _, err := c.updateDoc(ctx, mapping.doctype, req.ObjectID, payload); err != nil {
		var fault *apiFault
		if errors.As(err, &fault) {
			if fault.notFound() {
				return core.ApprovableObject{}, &core.ObjectNotFoundError{
					Tenant:     c.tenant,
					ObjectType: req.ObjectType,
					ObjectID:   req.ObjectID,
					Cause:      err,
				}
			}
			// the update was refused; a concurrent decision may have
			// landed first
			if refreshed, readErr := c.getDoc(ctx, mapping, req.ObjectID); readErr == nil {
				if state := mapping.stateOf(refreshed); state != expected {
					return core.ApprovableObject{}, &core.StateConflictError{
						Tenant:     c.tenant,
						ObjectType: req.ObjectType,
						ObjectID:   req.ObjectID,
						State:      state,
					}
				}
			}
			return core.ApprovableObject{}, fault.toServiceError(c.tenant, mapping.doctype)
		}
		return core.ApprovableObject{}, err
	}

	if req.Action == core.ActionReject && req.Reason != "" {
		// the transition is already applied; a failed comment never
		// unwinds it
		if err := c.postRejectComment(ctx, mapping, req.ObjectID, req.Reason); err != nil {
			c.logger.Warn("reject comment write failed",
				"tenant", c.tenant,
				"doctype", mapping.doctype,
				"object_id", req.ObjectID,
				"error", err.Error(),
			)
		}
	}

	refreshed, err := c.getDoc(ctx, mapping, req.ObjectID)
	if err != nil {
		c.logger.Warn("post-transition read failed",
			"tenant", c.tenant,
			"doctype", mapping.doctype,
			"object_id", req.ObjectID,
			"error", err.Error(),
		)
		for key, value := range payload {
			record[key] = value
		}
		object := mapping.toObject(c.tenant, req.ObjectID, record)
		object.State = core.TargetState(req.Action)
		return object, nil
	}
	return mapping.toObject(c.tenant, req.ObjectID, refreshed), nil
}

func (c *Client) ListPending(ctx context.Context, objectType string, limit int) ([]core.ApprovableObject, error) {
	mapping, err := docMappingFor(objectType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	filters, err := json.Marshal(mapping.pendingFilters)
	if err != nil {
		return nil, fmt.Errorf("backend/rest: encode %s filters: %w", mapping.doctype, err)
	}
	fields, err := json.Marshal(mapping.fields)
	if err != nil {
		return nil, fmt.Errorf("backend/rest: encode %s fields: %w", mapping.doctype, err)
	}
	query := url.Values{}
	query.Set("filters", string(filters))
	query.Set("fields", string(fields))
	query.Set("order_by", "modified desc")
	query.Set("limit_start", "0")
	query.Set("limit_page_length", strconv.Itoa(limit))

	raw, err := c.request(ctx, http.MethodGet, resourcePath+"/"+url.PathEscape(mapping.doctype), query, nil)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("backend/rest: decode %s list: %w", mapping.doctype, err)
	}
	items := make([]core.ApprovableObject, 0, len(envelope.Data))
	for _, record := range envelope.Data {
		items = append(items, mapping.toObject(c.tenant, stringField(record, "name"), record))
	}
	return items, nil
}

// Ping checks reachability through the whitelisted ping method.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.callMethod(ctx, pingMethod, nil)
	return err
}

func (c *Client) getDoc(ctx context.Context, mapping docMapping, name string) (map[string]any, error) {
	endpoint := resourcePath + "/" + url.PathEscape(mapping.doctype) + "/" + url.PathEscape(name)
	raw, err := c.request(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		var fault *apiFault
		if errors.As(err, &fault) {
			if fault.notFound() {
				return nil, &core.ObjectNotFoundError{
					Tenant:     c.tenant,
					ObjectType: mapping.objectType,
					ObjectID:   name,
					Cause:      err,
				}
			}
			return nil, fault.toServiceError(c.tenant, mapping.doctype)
		}
		return nil, err
	}
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("backend/rest: decode %s document: %w", mapping.doctype, err)
	}
	if envelope.Data == nil {
		return nil, &core.ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: mapping.objectType,
			ObjectID:   name,
		}
	}
	return envelope.Data, nil
}

func (c *Client) updateDoc(ctx context.Context, doctype, name string, payload map[string]any) (json.RawMessage, error) {
	endpoint := resourcePath + "/" + url.PathEscape(doctype) + "/" + url.PathEscape(name)
	return c.request(ctx, http.MethodPut, endpoint, nil, payload)
}

func (c *Client) callMethod(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	raw, err := c.request(ctx, http.MethodPost, methodPath+"/"+method, nil, args)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != nil {
		return envelope.Message, nil
	}
	return raw, nil
}

func (c *Client) postRejectComment(ctx context.Context, mapping docMapping, name, reason string) error {
	_, err := c.callMethod(ctx, "frappe.desk.form.utils.add_comment", map[string]any{
		"reference_doctype": mapping.doctype,
		"reference_name":    name,
		"content":           "Rejected: " + reason,
	})
	return err
}

func (c *Client) request(ctx context.Context, method, endpoint string, query url.Values, payload any) (json.RawMessage, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend/rest: encode %s %s request: %w", method, endpoint, err)
		}
		body = bytes.NewReader(encoded)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("backend/rest: build %s %s request: %w", method, endpoint, err)
	}
	httpReq.Header.Set("Authorization", "token "+c.token.Value())
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpRes, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, &core.BackendUnavailableError{Tenant: c.tenant, Family: Family, Cause: err}
	}
	defer httpRes.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(httpRes.Body, c.bodyLimit+1))
	if err != nil {
		return nil, &core.BackendUnavailableError{Tenant: c.tenant, Family: Family, Cause: err}
	}
	if int64(len(responseBody)) > c.bodyLimit {
		return nil, &core.BackendUnavailableError{
			Tenant: c.tenant,
			Family: Family,
			Cause:  fmt.Errorf("response body exceeds limit of %d bytes", c.bodyLimit),
		}
	}
	if httpRes.StatusCode >= http.StatusInternalServerError {
		return nil, &core.BackendUnavailableError{
			Tenant: c.tenant,
			Family: Family,
			Cause:  fmt.Errorf("endpoint answered status %d", httpRes.StatusCode),
		}
	}
	if httpRes.StatusCode >= http.StatusBadRequest {
		return nil, &apiFault{
			status:   httpRes.StatusCode,
			endpoint: endpoint,
			detail:   faultDetail(responseBody),
		}
	}
	return responseBody, nil
}

// apiFault is a structured refusal answered by the API itself, as opposed to
// transport-level unavailability.
type apiFault struct {
	status   int
	endpoint string
	detail   string
}

func (f *apiFault) Error() string {
	return fmt.Sprintf("backend/rest: %s answered %d: %s", f.endpoint, f.status, f.detail)
}

func (f *apiFault) notFound() bool {
	return f.status == http.StatusNotFound
}

func (f *apiFault) permissionDenied() bool {
	return f.status == http.StatusForbidden
}

func (f *apiFault) toServiceError(tenant, doctype string) *goerrors.Error {
	category := goerrors.CategoryOperation
	textCode := core.ApprovalErrorBackendFailed
	if f.permissionDenied() {
		category = goerrors.CategoryExternal
		textCode = core.ApprovalErrorBackendUnavailable
	}
	return goerrors.New(f.Error(), category).
		WithCode(core.ApprovalHTTPStatus(category)).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"tenant":  tenant,
			"family":  Family,
			"doctype": doctype,
			"status":  f.status,
		})
}

// faultDetail mines the error body for the server-side exception text.
func faultDetail(body []byte) string {
	var payload struct {
		Exc     string `json:"exc"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Exc != "" {
			return payload.Exc
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	detail := string(bytes.TrimSpace(body))
	if detail == "" {
		return "no error detail"
	}
	return detail
}

var (
	_ core.BackendClient = (*Client)(nil)
	_ core.PendingLister = (*Client)(nil)
	_ core.HealthChecker = (*Client)(nil)
)
