package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edalens/internal/config"
	"edalens/internal/dataset"
	apierrors "edalens/internal/errors"
	"edalens/internal/report"
	"edalens/internal/services"
)

// fakeReportService returns canned results and records the session it saw
type fakeReportService struct {
	createReport *report.Report
	createErr    error
	current      *report.Report
	currentErr   error
	boxplot      *report.Boxplot
	boxplotErr   error
	clearErr     error

	lastSession  string
	lastFilename string
	lastColumn   string
	lastRaw      []byte
}

func (f *fakeReportService) CreateReport(_ context.Context, sessionID string, req services.UploadRequest, raw []byte) (*report.Report, error) {
	f.lastSession = sessionID
	f.lastFilename = req.Filename
	f.lastRaw = raw
	return f.createReport, f.createErr
}

func (f *fakeReportService) CurrentReport(_ context.Context, sessionID string) (*report.Report, error) {
	f.lastSession = sessionID
	return f.current, f.currentErr
}

func (f *fakeReportService) Boxplot(_ context.Context, sessionID, column string) (*report.Boxplot, error) {
	f.lastSession = sessionID
	f.lastColumn = column
	return f.boxplot, f.boxplotErr
}

func (f *fakeReportService) ClearReport(_ context.Context, sessionID string) error {
	f.lastSession = sessionID
	return f.clearErr
}

func newTestHandler(svc ReportServiceInterface) *ReportHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReportHandler(svc, config.Default(), logger, apierrors.NewErrorHandler(logger, false))
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func TestUploadCreatesReport(t *testing.T) {
	svc := &fakeReportService{
		createReport: &report.Report{Shape: report.Shape{Rows: 2, Cols: 2}},
	}
	handler := newTestHandler(svc)

	body, contentType := multipartBody(t, "data.csv", "a,b\n1,2\n3,4\n")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "data.csv", svc.lastFilename)
	assert.Equal(t, "a,b\n1,2\n3,4\n", string(svc.lastRaw))

	var resp struct {
		Status string        `json:"status"`
		Data   report.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.Data.Shape.Rows)
}

func TestUploadSetsSessionCookie(t *testing.T) {
	svc := &fakeReportService{createReport: &report.Report{}}
	handler := newTestHandler(svc)

	body, contentType := multipartBody(t, "data.csv", "a\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "eda_session", cookies[0].Name)
	assert.Equal(t, cookies[0].Value, svc.lastSession)
	assert.True(t, cookies[0].HttpOnly)
}

func TestUploadReusesExistingSession(t *testing.T) {
	svc := &fakeReportService{createReport: &report.Report{}}
	handler := newTestHandler(svc)

	body, contentType := multipartBody(t, "data.csv", "a\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.AddCookie(&http.Cookie{Name: "eda_session", Value: "existing-session"})
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, "existing-session", svc.lastSession)
}

func TestUploadWithoutFile(t *testing.T) {
	handler := newTestHandler(&fakeReportService{})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("name", "not-a-file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
}

func TestUploadParseFailure(t *testing.T) {
	svc := &fakeReportService{createErr: dataset.ErrParse}
	handler := newTestHandler(svc)

	body, contentType := multipartBody(t, "bad.csv", "a,b\n1\n")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeUnparsableUpload, problem["type"])
}

func TestUploadEmptyDataset(t *testing.T) {
	svc := &fakeReportService{createErr: dataset.ErrEmpty}
	handler := newTestHandler(svc)

	body, contentType := multipartBody(t, "empty.csv", "a,b\n")
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeEmptyDataset, problem["type"])
}

func TestCurrentWithoutReport(t *testing.T) {
	svc := &fakeReportService{currentErr: services.ErrNoReport}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/current", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, apierrors.TypeReportNotFound, problem["type"])
}

func TestCurrentReturnsReport(t *testing.T) {
	svc := &fakeReportService{
		current: &report.Report{Shape: report.Shape{Rows: 5, Cols: 3}},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/current", nil)
	req.AddCookie(&http.Cookie{Name: "eda_session", Value: "s1"})
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", svc.lastSession)
}

func TestBoxplotRequiresColumn(t *testing.T) {
	handler := newTestHandler(&fakeReportService{})

	req := httptest.NewRequest(http.MethodGet, "/current/boxplot", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBoxplotColumnErrors(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
		wantType   string
	}{
		{"unknown column", report.ErrColumnNotFound, http.StatusNotFound, apierrors.TypeColumnNotFound},
		{"non numeric column", report.ErrColumnNotNumeric, http.StatusUnprocessableEntity, apierrors.TypeColumnNotNumeric},
		{"no report", services.ErrNoReport, http.StatusNotFound, apierrors.TypeReportNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeReportService{boxplotErr: tt.serviceErr}
			handler := newTestHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/current/boxplot?column=x", nil)
			rec := httptest.NewRecorder()

			handler.Routes().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var problem map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			assert.Equal(t, tt.wantType, problem["type"])
		})
	}
}

func TestBoxplotSuccess(t *testing.T) {
	svc := &fakeReportService{
		boxplot: &report.Boxplot{Column: "score", Count: 4},
	}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/current/boxplot?column=score", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "score", svc.lastColumn)
}

func TestClearReport(t *testing.T) {
	svc := &fakeReportService{}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/current", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestClearWithoutReport(t *testing.T) {
	svc := &fakeReportService{clearErr: services.ErrNoReport}
	handler := newTestHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/current", nil)
	rec := httptest.NewRecorder()

	handler.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
