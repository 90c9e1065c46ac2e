package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-approvals/core"
)

// Client talks to one tenant's backend. The uid from the login handshake is
// cached for the client's lifetime; a client is safe for concurrent use.
type Client struct {
	tenant    string
	endpoint  string
	database  string
	username  string
	password  core.Secret
	doer      HTTPDoer
	bodyLimit int64
	logger    core.Logger

	nextID atomic.Int64

	mu  sync.Mutex
	uid int64
}

func (c *Client) Family() string { return Family }

func (c *Client) Tenant() string { return c.tenant }

func (c *Client) FetchObject(ctx context.Context, objectType, objectID string) (core.ApprovableObject, error) {
	mapping, err := mappingFor(objectType)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	id, err := c.parseObjectID(objectType, objectID)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	record, err := c.read(ctx, mapping, id)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	return mapping.toObject(c.tenant, objectID, record), nil
}

func (c *Client) ApplyTransition(ctx context.Context, req core.TransitionRequest) (core.ApprovableObject, error) {
	mapping, err := mappingFor(req.ObjectType)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	id, err := c.parseObjectID(req.ObjectType, req.ObjectID)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	expected := req.ExpectedState
	if expected == "" {
		expected = core.ObjectStatePending
	}

	record, err := c.read(ctx, mapping, id)
	if err != nil {
		return core.ApprovableObject{}, err
	}
	if current := mapping.normalizeState(record[mapping.stateField]); current != expected {
		return core.ApprovableObject{}, &core.StateConflictError{
			Tenant:     c.tenant,
			ObjectType: req.ObjectType,
			ObjectID:   req.ObjectID,
			State:      current,
		}
	}

	methods := mapping.approveMethods
	if req.Action == core.ActionReject {
		methods = mapping.rejectMethods
	}
	for _, method := range methods {
		if _, err := c.executeKw(ctx, mapping.model, method, []any{[]int64{id}}, nil); err != nil {
			var fault *rpcFault
			if errors.As(err, &fault) {
				// the workflow call was refused; a concurrent decision may
				// have moved the document first
				if refreshed, readErr := c.read(ctx, mapping, id); readErr == nil {
					if state := mapping.normalizeState(refreshed[mapping.stateField]); state != expected {
						return core.ApprovableObject{}, &core.StateConflictError{
							Tenant:     c.tenant,
							ObjectType: req.ObjectType,
							ObjectID:   req.ObjectID,
							State:      state,
						}
					}
				}
				return core.ApprovableObject{}, fault.toServiceError(c.tenant, mapping.model)
			}
			return core.ApprovableObject{}, err
		}
	}

	if req.Action == core.ActionReject && req.Reason != "" && mapping.rejectNote {
		// the transition is already applied; a failed note never unwinds it
		if err := c.postRejectNote(ctx, mapping, id, req.Reason); err != nil {
			c.logger.Warn("reject note write failed",
				"tenant", c.tenant,
				"model", mapping.model,
				"object_id", req.ObjectID,
				"error", err.Error(),
			)
		}
	}

	refreshed, err := c.read(ctx, mapping, id)
	if err != nil {
		c.logger.Warn("post-transition read failed",
			"tenant", c.tenant,
			"model", mapping.model,
			"object_id", req.ObjectID,
			"error", err.Error(),
		)
		record[mapping.stateField] = string(core.TargetState(req.Action))
		object := mapping.toObject(c.tenant, req.ObjectID, record)
		object.State = core.TargetState(req.Action)
		return object, nil
	}
	return mapping.toObject(c.tenant, req.ObjectID, refreshed), nil
}

func (c *Client) ListPending(ctx context.Context, objectType string, limit int) ([]core.ApprovableObject, error) {
	mapping, err := mappingFor(objectType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	kwargs := map[string]any{
		"fields": mapping.fields,
		"limit":  limit,
		"order":  "id desc",
	}
	result, err := c.executeKw(ctx, mapping.model, "search_read", []any{mapping.pendingDomain}, kwargs)
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("backend/jsonrpc: decode %s search_read: %w", mapping.model, err)
	}
	items := make([]core.ApprovableObject, 0, len(records))
	for _, record := range records {
		items = append(items, mapping.toObject(c.tenant, recordID(record), record))
	}
	return items, nil
}

// Ping checks reachability without consuming an authenticated session.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.call(ctx, serviceCommon, "version", []any{})
	return err
}

func (c *Client) read(ctx context.Context, mapping objectMapping, id int64) (map[string]any, error) {
	result, err := c.executeKw(ctx, mapping.model, "read", []any{[]int64{id}, mapping.fields}, nil)
	if err != nil {
		var fault *rpcFault
		if errors.As(err, &fault) {
			if fault.missingRecord() {
				return nil, &core.ObjectNotFoundError{
					Tenant:     c.tenant,
					ObjectType: mapping.objectType,
					ObjectID:   strconv.FormatInt(id, 10),
					Cause:      err,
				}
			}
			return nil, fault.toServiceError(c.tenant, mapping.model)
		}
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(result, &records); err != nil {
		return nil, fmt.Errorf("backend/jsonrpc: decode %s read: %w", mapping.model, err)
	}
	if len(records) == 0 {
		return nil, &core.ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: mapping.objectType,
			ObjectID:   strconv.FormatInt(id, 10),
		}
	}
	return records[0], nil
}

func (c *Client) postRejectNote(ctx context.Context, mapping objectMapping, id int64, reason string) error {
	values := map[string]any{
		"model":        mapping.model,
		"res_id":       id,
		"body":         "<p>Rejected: " + reason + "</p>",
		"message_type": "comment",
	}
	_, err := c.executeKw(ctx, "mail.message", "create", []any{values}, nil)
	return err
}

func (c *Client) executeKw(ctx context.Context, model, method string, args []any, kwargs map[string]any) (json.RawMessage, error) {
	uid, err := c.login(ctx)
	if err != nil {
		return nil, err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return c.call(ctx, serviceObject, "execute_kw", []any{
		c.database, uid, c.password.Value(), model, method, args, kwargs,
	})
}

func (c *Client) login(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uid != 0 {
		return c.uid, nil
	}
	result, err := c.call(ctx, serviceCommon, "login", []any{c.database, c.username, c.password.Value()})
	if err != nil {
		return 0, err
	}
	var uid int64
	// the handshake answers false, not an error object, on bad credentials
	if err := json.Unmarshal(result, &uid); err != nil || uid == 0 {
		return 0, goerrors.New(
			fmt.Sprintf("backend login rejected for tenant %q", c.tenant),
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).
			WithTextCode(core.ApprovalErrorBackendUnavailable).
			WithMetadata(map[string]any{"tenant": c.tenant, "family": Family})
	}
	c.uid = uid
	return uid, nil
}

func (c *Client) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("backend/jsonrpc: encode %s.%s request: %w", service, method, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("backend/jsonrpc: build %s.%s request: %w", service, method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpRes, err := c.doer.Do(httpReq)
	if err != nil {
		return nil, &core.BackendUnavailableError{Tenant: c.tenant, Family: Family, Cause: err}
	}
	defer httpRes.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpRes.Body, c.bodyLimit+1))
	if err != nil {
		return nil, &core.BackendUnavailableError{Tenant: c.tenant, Family: Family, Cause: err}
	}
	if int64(len(body)) > c.bodyLimit {
		return nil, &core.BackendUnavailableError{
			Tenant: c.tenant,
			Family: Family,
			Cause:  fmt.Errorf("response body exceeds limit of %d bytes", c.bodyLimit),
		}
	}
	if httpRes.StatusCode >= http.StatusBadRequest {
		return nil, &core.BackendUnavailableError{
			Tenant: c.tenant,
			Family: Family,
			Cause:  fmt.Errorf("endpoint answered status %d", httpRes.StatusCode),
		}
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &core.BackendUnavailableError{Tenant: c.tenant, Family: Family, Cause: err}
	}
	if decoded.Error != nil {
		return nil, &rpcFault{service: service, method: method, detail: *decoded.Error}
	}
	return decoded.Result, nil
}

func (c *Client) parseObjectID(objectType, objectID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(objectID), 10, 64)
	if err != nil || id <= 0 {
		// this dialect addresses documents numerically, so a non-numeric id
		// cannot name an existing document
		return 0, &core.ObjectNotFoundError{
			Tenant:     c.tenant,
			ObjectType: objectType,
			ObjectID:   objectID,
			Cause:      fmt.Errorf("backend/jsonrpc: object ids are numeric, got %q", objectID),
		}
	}
	return id, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    rpcErrorData `json:"data"`
}

type rpcErrorData struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Debug   string `json:"debug"`
}

// rpcFault is a structured error answered by the endpoint itself, as opposed
// to transport-level unavailability.
type rpcFault struct {
	service string
	method  string
	detail  rpcError
}

func (f *rpcFault) Error() string {
	return fmt.Sprintf("backend/jsonrpc: %s.%s failed: %s", f.service, f.method, f.message())
}

func (f *rpcFault) message() string {
	if msg := strings.TrimSpace(f.detail.Data.Message); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(f.detail.Message); msg != "" {
		return msg
	}
	return "unknown fault"
}

func (f *rpcFault) missingRecord() bool {
	if strings.Contains(f.detail.Data.Name, "MissingError") {
		return true
	}
	msg := strings.ToLower(f.message())
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "no longer exists")
}

func (f *rpcFault) accessDenied() bool {
	return strings.Contains(f.detail.Data.Name, "AccessError") ||
		strings.Contains(f.detail.Data.Name, "AccessDenied")
}

func (f *rpcFault) toServiceError(tenant, model string) *goerrors.Error {
	category := goerrors.CategoryOperation
	textCode := core.ApprovalErrorBackendFailed
	if f.accessDenied() {
		category = goerrors.CategoryExternal
		textCode = core.ApprovalErrorBackendUnavailable
	}
	return goerrors.New(f.Error(), category).
		WithCode(core.ApprovalHTTPStatus(category)).
		WithTextCode(textCode).
		WithMetadata(map[string]any{
			"tenant": tenant,
			"family": Family,
			"model":  model,
			"method": f.method,
		})
}

func recordID(record map[string]any) string {
	switch id := record["id"].(type) {
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case string:
		return id
	default:
		return ""
	}
}

var (
	_ core.BackendClient = (*Client)(nil)
	_ core.PendingLister = (*Client)(nil)
	_ core.HealthChecker = (*Client)(nil)
)
