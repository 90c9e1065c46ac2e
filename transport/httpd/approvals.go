package httpd

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-approvals/core"
)

// decisionRequest is the POST body the orchestrator sends for one decision.
// The actor fields describe the human who decided in the chat front end, not
// the service credential that authenticated the call.
type decisionRequest struct {
	Action    string         `json:"action"`
	Actor     string         `json:"actor"`
	ActorRole string         `json:"actorRole"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata"`
}

type objectResponse struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Tenant      string         `json:"tenant"`
	State       string         `json:"state"`
	DisplayName string         `json:"displayName,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
	Currency    string         `json:"currency,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

type auditStatusResponse struct {
	State   string `json:"state"`
	EntryID string `json:"entryId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// decisionResponse reports the applied transition. Audit.State is "degraded"
// when the backend change landed but the audit write did not; the call is
// still a 200 because the business outcome is committed.
type decisionResponse struct {
	Object  objectResponse      `json:"object"`
	Outcome string              `json:"outcome"`
	Audit   auditStatusResponse `json:"audit"`
}

type pendingResponse struct {
	Items []objectResponse `json:"items"`
	Count int              `json:"count"`
}

// ApprovalHandler serves the decision and object read endpoints.
type ApprovalHandler struct {
	service core.ApprovalService
	logger  core.Logger
}

func NewApprovalHandler(service core.ApprovalService, logger core.Logger) *ApprovalHandler {
	return &ApprovalHandler{service: service, logger: logger}
}

// Decide handles POST /approvals/:objectType/:id. Payload semantics live in
// the service; this layer only shapes the request and picks status codes.
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var body decisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.logger, badRequest("invalid request body"))
		return
	}

	result, err := h.service.Decide(c.Request.Context(), core.ApprovalRequest{
		Tenant:     c.Query("tenant"),
		ObjectType: c.Param("objectType"),
		ObjectID:   c.Param("id"),
		Action:     core.ApprovalAction(body.Action),
		Actor:      body.Actor,
		ActorRole:  body.ActorRole,
		Reason:     body.Reason,
		RequestID:  c.GetString(RequestIDKey),
		Metadata:   decisionMetadata(c, body.Metadata),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, decisionResponse{
		Object:  toObjectResponse(result.Object),
		Outcome: string(result.Outcome),
		Audit: auditStatusResponse{
			State:   string(result.AuditState),
			EntryID: result.AuditEntryID,
			Error:   result.AuditError,
		},
	})
}

// GetObject handles GET /approvals/:objectType/:id.
func (h *ApprovalHandler) GetObject(c *gin.Context) {
	object, err := h.service.GetObject(
		c.Request.Context(),
		c.Query("tenant"),
		c.Param("objectType"),
		c.Param("id"),
	)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toObjectResponse(object))
}

// ListPending handles GET /approvals/pending.
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	items, err := h.service.ListPending(c.Request.Context(), core.PendingQuery{
		Tenant:     c.Query("tenant"),
		ObjectType: c.Query("objectType"),
		Limit:      parseIntDefault(c.Query("limit"), 0),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	out := make([]objectResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toObjectResponse(item))
	}
	c.JSON(http.StatusOK, pendingResponse{Items: out, Count: len(out)})
}

func toObjectResponse(object core.ApprovableObject) objectResponse {
	return objectResponse{
		ID:          object.ID,
		Type:        object.Type,
		Tenant:      object.Tenant,
		State:       string(object.State),
		DisplayName: object.DisplayName,
		Amount:      object.Amount,
		Currency:    object.Currency,
		Data:        object.Raw,
	}
}

// decisionMetadata folds boundary facts into the caller-supplied metadata so
// they land in the audit entry: which API key authenticated the call and the
// correlation id the client sent, when any.
func decisionMetadata(c *gin.Context, supplied map[string]any) map[string]any {
	principal, hasPrincipal := PrincipalFrom(c)
	clientID := c.GetString(ClientRequestIDKey)
	if !hasPrincipal && clientID == "" {
		return supplied
	}

	metadata := make(map[string]any, len(supplied)+2)
	for key, value := range supplied {
		metadata[key] = value
	}
	if hasPrincipal {
		metadata["auth_key_id"] = principal.KeyID
	}
	if clientID != "" {
		metadata["client_request_id"] = clientID
	}
	return metadata
}
