package errors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"edalens/internal/infrastructure"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("request_id", traceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	if h.includeStack {
		problem.WithExtension("stack", string(debug.Stack()))
	}

	render.Render(w, r, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing the request",
		r.URL.Path,
	)
}

// apiErrorToProblem maps APIError codes to problem types
func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	title := "Internal Server Error"

	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST", "MISSING_PARAMETER":
		problemType = TypeValidation
		title = "Validation Failed"
	case "NOT_FOUND":
		problemType = TypeNotFound
		title = "Resource Not Found"
	case "REPORT_NOT_FOUND":
		problemType = TypeReportNotFound
		title = "Report Not Found"
	case "COLUMN_NOT_FOUND":
		problemType = TypeColumnNotFound
		title = "Column Not Found"
	case "COLUMN_NOT_NUMERIC":
		problemType = TypeColumnNotNumeric
		title = "Column Not Numeric"
	case "UNPARSABLE_UPLOAD":
		problemType = TypeUnparsableUpload
		title = "Unparsable Upload"
	case "EMPTY_DATASET":
		problemType = TypeEmptyDataset
		title = "Empty Dataset"
	case "PAYLOAD_TOO_LARGE":
		problemType = TypePayloadTooLarge
		title = "Payload Too Large"
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
		title = "Too Many Requests"
	case "WEBSOCKET_UPGRADE_FAILED":
		problemType = TypeWebSocketUpgrade
		title = "WebSocket Upgrade Failed"
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType, title, apiErr.Message, r.URL.Path)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}
