package httpd

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/metrics"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	RequestID string `json:"requestId,omitempty"`
}

type serviceErrorConverter interface {
	ToServiceError() *goerrors.Error
}

// respondError renders any error through the taxonomy envelope and aborts the
// request. Status comes from the envelope code, falling back to the category
// mapping when a producer forgot to set one.
func respondError(c *gin.Context, logger core.Logger, err error) {
	richErr := toEnvelope(err)

	status := richErr.Code
	if status < http.StatusBadRequest {
		status = core.ApprovalHTTPStatus(richErr.Category)
	}
	metrics.HTTPErrorsTotal.WithLabelValues(richErr.TextCode).Inc()

	if logger != nil && status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"status", status,
			"text_code", richErr.TextCode,
			"error", richErr.Message,
			"request_id", c.GetString(RequestIDKey),
		)
	}

	c.AbortWithStatusJSON(status, errorResponse{
		Code:      richErr.TextCode,
		Message:   richErr.Message,
		Category:  string(richErr.Category),
		RequestID: c.GetString(RequestIDKey),
	})
}

func toEnvelope(err error) *goerrors.Error {
	if err == nil {
		return goerrors.New("unknown failure", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.ApprovalErrorInternal)
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	var converter serviceErrorConverter
	if errors.As(err, &converter) {
		return converter.ToServiceError()
	}
	return goerrors.New(err.Error(), goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ApprovalErrorInternal)
}

func badRequest(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ApprovalErrorBadInput)
}
