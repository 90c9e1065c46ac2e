package httpd

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-approvals/core"
)

type auditEntryResponse struct {
	ID           string         `json:"id"`
	CreatedAt    time.Time      `json:"createdAt"`
	Tenant       string         `json:"tenant"`
	ObjectType   string         `json:"objectType"`
	ObjectID     string         `json:"objectId"`
	Action       string         `json:"action"`
	Actor        string         `json:"actor"`
	ActorRole    string         `json:"actorRole,omitempty"`
	PriorState   string         `json:"priorState,omitempty"`
	ResultState  string         `json:"resultState,omitempty"`
	Outcome      string         `json:"outcome"`
	Reason       string         `json:"reason,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	Source       string         `json:"source,omitempty"`
	ObjectData   map[string]any `json:"objectData,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type auditPageResponse struct {
	Items   []auditEntryResponse `json:"items"`
	Page    int                  `json:"page"`
	PerPage int                  `json:"perPage"`
	Total   int                  `json:"total"`
	HasNext bool                 `json:"hasNext"`
}

// AuditHandler serves the decision trail read endpoints. There is no write
// surface here; entries only come into existence through decisions.
type AuditHandler struct {
	service core.ApprovalService
	logger  core.Logger
}

func NewAuditHandler(service core.ApprovalService, logger core.Logger) *AuditHandler {
	return &AuditHandler{service: service, logger: logger}
}

// List handles GET /audit.
func (h *AuditHandler) List(c *gin.Context) {
	filter := core.AuditFilter{
		Tenant:     c.Query("tenant"),
		ObjectType: c.Query("objectType"),
		ObjectID:   c.Query("objectId"),
		Actor:      c.Query("actor"),
		Action:     c.Query("action"),
		Outcome:    core.AuditOutcome(c.Query("outcome")),
		Page:       parseIntDefault(c.Query("page"), 0),
		PerPage:    parseIntDefault(c.Query("limit"), 0),
	}

	from, ok := parseTimeParam(c, h.logger, "from")
	if !ok {
		return
	}
	to, ok := parseTimeParam(c, h.logger, "to")
	if !ok {
		return
	}
	filter.From = from
	filter.To = to

	page, err := h.service.ListAudit(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]auditEntryResponse, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, toAuditEntryResponse(entry))
	}
	c.JSON(http.StatusOK, auditPageResponse{
		Items:   items,
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
		HasNext: page.HasNext,
	})
}

// Get handles GET /audit/:id.
func (h *AuditHandler) Get(c *gin.Context) {
	entry, err := h.service.GetAuditEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAuditEntryResponse(entry))
}

func toAuditEntryResponse(entry core.AuditLogEntry) auditEntryResponse {
	return auditEntryResponse{
		ID:           entry.ID,
		CreatedAt:    entry.CreatedAt,
		Tenant:       entry.Tenant,
		ObjectType:   entry.ObjectType,
		ObjectID:     entry.ObjectID,
		Action:       entry.Action,
		Actor:        entry.Actor,
		ActorRole:    entry.ActorRole,
		PriorState:   entry.PriorState,
		ResultState:  entry.ResultState,
		Outcome:      string(entry.Outcome),
		Reason:       entry.Reason,
		ErrorMessage: entry.ErrorMessage,
		RequestID:    entry.RequestID,
		Source:       entry.Source,
		ObjectData:   entry.ObjectData,
		Metadata:     entry.Metadata,
	}
}

// parseIntDefault tolerates absent or malformed numeric params; range
// clamping belongs to the service.
func parseIntDefault(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// parseTimeParam reads an RFC3339 query param. A malformed value aborts the
// request; reporting false tells the handler the response is already written.
func parseTimeParam(c *gin.Context, logger core.Logger, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondError(c, logger, badRequest("invalid "+name+" timestamp, use RFC3339"))
		return nil, false
	}
	return &parsed, true
}
