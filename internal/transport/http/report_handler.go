package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"edalens/internal/config"
	"edalens/internal/dataset"
	apierrors "edalens/internal/errors"
	"edalens/internal/report"
	"edalens/internal/services"
)

// ReportServiceInterface is the surface of the report service the handler
// needs; tests substitute a fake
type ReportServiceInterface interface {
	CreateReport(ctx context.Context, sessionID string, req services.UploadRequest, raw []byte) (*report.Report, error)
	CurrentReport(ctx context.Context, sessionID string) (*report.Report, error)
	Boxplot(ctx context.Context, sessionID, column string) (*report.Boxplot, error)
	ClearReport(ctx context.Context, sessionID string) error
}

// ReportHandler handles dataset uploads and report views
type ReportHandler struct {
	service      ReportServiceInterface
	cfg          *config.Config
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewReportHandler creates a new report handler
func NewReportHandler(service ReportServiceInterface, cfg *config.Config, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *ReportHandler {
	return &ReportHandler{
		service:      service,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the report routes
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.Upload)
	r.Get("/current", h.Current)
	r.Get("/current/boxplot", h.BoxplotView)
	r.Delete("/current", h.Clear)

	return r
}

// Upload handles POST /api/reports: a multipart dataset upload that replaces
// the session's current report
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID := EnsureSession(w, r, h.cfg.Session)

	// Cap the whole request body; the per-file check below enforces the
	// exact limit with a clean problem response
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Upload.MaxBytes+4096)

	if err := r.ParseMultipartForm(h.cfg.Upload.MaxBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.PayloadTooLarge(h.cfg.Upload.MaxBytes))
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A dataset file is required"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, h.cfg.Upload.MaxBytes+1))
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if int64(len(raw)) > h.cfg.Upload.MaxBytes {
		h.errorHandler.HandleError(w, r, apierrors.PayloadTooLarge(h.cfg.Upload.MaxBytes))
		return
	}

	rep, err := h.service.CreateReport(r.Context(), sessionID, services.UploadRequest{
		Filename: header.Filename,
		Size:     int64(len(raw)),
	}, raw)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.uploadError(err))
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, envelope(rep))
}

// Current handles GET /api/reports/current
func (h *ReportHandler) Current(w http.ResponseWriter, r *http.Request) {
	sessionID := EnsureSession(w, r, h.cfg.Session)

	rep, err := h.service.CurrentReport(r.Context(), sessionID)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.reportError(err, ""))
		return
	}

	render.JSON(w, r, envelope(rep))
}

// BoxplotView handles GET /api/reports/current/boxplot?column=NAME
func (h *ReportHandler) BoxplotView(w http.ResponseWriter, r *http.Request) {
	sessionID := EnsureSession(w, r, h.cfg.Session)

	column := r.URL.Query().Get("column")
	if column == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("column", "Query parameter column is required"))
		return
	}

	box, err := h.service.Boxplot(r.Context(), sessionID, column)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.reportError(err, column))
		return
	}

	render.JSON(w, r, envelope(box))
}

// Clear handles DELETE /api/reports/current
func (h *ReportHandler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID := EnsureSession(w, r, h.cfg.Session)

	if err := h.service.ClearReport(r.Context(), sessionID); err != nil {
		h.errorHandler.HandleError(w, r, h.reportError(err, ""))
		return
	}

	render.NoContent(w, r)
}

// uploadError maps service and parse errors on the upload path to API errors
func (h *ReportHandler) uploadError(err error) error {
	switch {
	case errors.Is(err, services.ErrPayloadTooLarge):
		return apierrors.PayloadTooLarge(h.cfg.Upload.MaxBytes)
	case errors.Is(err, services.ErrInvalidUpload):
		return apierrors.InvalidRequestWithError(err)
	case errors.Is(err, dataset.ErrEmpty):
		return apierrors.ErrEmptyDataset
	case errors.Is(err, dataset.ErrParse):
		return apierrors.ParseFailure(err)
	default:
		return err
	}
}

// reportError maps service errors on the read paths to API errors
func (h *ReportHandler) reportError(err error, column string) error {
	switch {
	case errors.Is(err, services.ErrNoReport):
		return apierrors.ErrReportNotFound
	case errors.Is(err, report.ErrColumnNotFound):
		return apierrors.ColumnNotFound(column)
	case errors.Is(err, report.ErrColumnNotNumeric):
		return apierrors.ColumnNotNumeric(column)
	case errors.Is(err, report.ErrNoValues):
		return apierrors.NewWithDetails(http.StatusUnprocessableEntity, "COLUMN_NOT_NUMERIC",
			"Column has no values to plot", column)
	default:
		return err
	}
}

// envelope wraps a payload in the standard success response shape
func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"status": "success",
		"data":   data,
	}
}
