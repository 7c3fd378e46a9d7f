// Package services holds the business layer between HTTP transport and the
// report generator. ReportService owns per-session report state: the current
// table and report for each session cookie, nothing else, with no
// persistence across uploads.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"edalens/internal/config"
	"edalens/internal/dataset"
	"edalens/internal/report"
)

// Event types pushed to a session's open pages
const (
	EventReportReady   = "report:ready"
	EventReportCleared = "report:cleared"
)

// SessionNotifier pushes report lifecycle events to a session's clients.
// Satisfied by the websocket hub.
type SessionNotifier interface {
	NotifySession(ctx context.Context, sessionID, eventType string, data interface{})
}

// UploadRequest carries the metadata of an uploaded file
type UploadRequest struct {
	Filename string `validate:"required,max=255"`
	Size     int64  `validate:"gt=0"`
}

// sessionState is the per-session slot holding the current upload's
// artifacts. pending/applied implement last-write-wins: an upload claims a
// sequence number before parsing and commits only if no later upload has
// been applied, so concurrent uploads never mix and the most recent one is
// what renders.
type sessionState struct {
	pending    uint64
	applied    uint64
	table      *dataset.Table
	report     *report.Report
	lastAccess time.Time
}

// ReportService generates and retains per-session reports
type ReportService struct {
	cfg       *config.Config
	logger    *slog.Logger
	generator *report.Generator
	notifier  SessionNotifier
	validate  *validator.Validate

	uploadsTotal  metric.Int64Counter
	parseFailures metric.Int64Counter
	generateTime  metric.Float64Histogram

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// NewReportService creates the report service with its OTel instruments
func NewReportService(cfg *config.Config, logger *slog.Logger, notifier SessionNotifier, meter metric.Meter) (*ReportService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "report_service"))

	uploadsTotal, err := meter.Int64Counter("eda.uploads",
		metric.WithDescription("Number of dataset uploads accepted"))
	if err != nil {
		return nil, fmt.Errorf("create uploads counter: %w", err)
	}

	parseFailures, err := meter.Int64Counter("eda.parse_failures",
		metric.WithDescription("Number of uploads that failed to parse"))
	if err != nil {
		return nil, fmt.Errorf("create parse failures counter: %w", err)
	}

	generateTime, err := meter.Float64Histogram("eda.generate_duration",
		metric.WithDescription("Report generation duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create generate duration histogram: %w", err)
	}

	return &ReportService{
		cfg:           cfg,
		logger:        logger,
		generator:     report.NewGenerator(logger),
		notifier:      notifier,
		validate:      validator.New(),
		uploadsTotal:  uploadsTotal,
		parseFailures: parseFailures,
		generateTime:  generateTime,
		sessions:      make(map[string]*sessionState),
	}, nil
}

// CreateReport parses the upload, generates a report, and installs it as the
// session's current report unless a later upload already did.
func (s *ReportService) CreateReport(ctx context.Context, sessionID string, req UploadRequest, raw []byte) (*report.Report, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	if req.Size > s.cfg.Upload.MaxBytes || int64(len(raw)) > s.cfg.Upload.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(raw), s.cfg.Upload.MaxBytes)
	}

	seq := s.claimSequence(sessionID)

	s.logger.InfoContext(ctx, "processing upload",
		slog.String("session_id", sessionID),
		slog.String("filename", req.Filename),
		slog.Int("bytes", len(raw)),
		slog.Uint64("sequence", seq))

	table, err := dataset.Parse(req.Filename, raw)
	if err != nil {
		s.parseFailures.Add(ctx, 1)
		s.logger.WarnContext(ctx, "upload failed to parse",
			slog.String("session_id", sessionID),
			slog.String("filename", req.Filename),
			slog.String("error", err.Error()))
		return nil, err
	}

	// Generation runs under its own budget so a pathological table cannot
	// hold a request slot forever
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.Upload.ParseBudget)
	defer cancel()

	start := time.Now()
	rep, err := s.generator.Generate(genCtx, table)
	if err != nil {
		return nil, fmt.Errorf("generate report: %w", err)
	}
	s.generateTime.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.Int("rows", rep.Shape.Rows)))

	applied := s.commit(sessionID, seq, table, rep)
	if !applied {
		// A newer upload finished first; its report stays current
		s.logger.InfoContext(ctx, "upload superseded by a newer one",
			slog.String("session_id", sessionID),
			slog.Uint64("sequence", seq))
		return rep, nil
	}

	s.uploadsTotal.Add(ctx, 1)

	if s.notifier != nil {
		s.notifier.NotifySession(ctx, sessionID, EventReportReady, map[string]interface{}{
			"filename": req.Filename,
			"rows":     rep.Shape.Rows,
			"cols":     rep.Shape.Cols,
		})
	}

	return rep, nil
}

// CurrentReport returns the session's current report
func (s *ReportService) CurrentReport(ctx context.Context, sessionID string) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok || st.report == nil {
		return nil, ErrNoReport
	}
	st.lastAccess = time.Now()

	return st.report, nil
}

// Boxplot computes the boxplot view for one column of the session's current
// table, on demand
func (s *ReportService) Boxplot(ctx context.Context, sessionID, column string) (*report.Boxplot, error) {
	s.mu.Lock()
	st, ok := s.sessions[sessionID]
	if !ok || st.table == nil {
		s.mu.Unlock()
		return nil, ErrNoReport
	}
	st.lastAccess = time.Now()
	table := st.table
	s.mu.Unlock()

	return report.BoxplotFor(table, column)
}

// ClearReport drops the session's current report and table
func (s *ReportService) ClearReport(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return ErrNoReport
	}

	if s.notifier != nil {
		s.notifier.NotifySession(ctx, sessionID, EventReportCleared, nil)
	}

	return nil
}

// StartSweeper evicts idle sessions until the context is cancelled
func (s *ReportService) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.Session.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// sweep drops sessions idle beyond the configured TTL
func (s *ReportService) sweep() {
	cutoff := time.Now().Add(-s.cfg.Session.IdleTTL)

	s.mu.Lock()
	evicted := 0
	for id, st := range s.sessions {
		if st.lastAccess.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	s.mu.Unlock()

	if evicted > 0 {
		s.logger.Info("evicted idle sessions", slog.Int("count", evicted))
	}
}

// SessionCount returns the number of sessions holding state
func (s *ReportService) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// claimSequence reserves the next upload sequence number for a session
func (s *ReportService) claimSequence(sessionID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		st = &sessionState{lastAccess: time.Now()}
		s.sessions[sessionID] = st
	}
	st.pending++
	return st.pending
}

// commit installs the upload's artifacts if no later upload has been applied
func (s *ReportService) commit(sessionID string, seq uint64, table *dataset.Table, rep *report.Report) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[sessionID]
	if !ok {
		// Session was cleared or swept mid-generation; reinstate it so
		// the upload that just finished is not silently lost
		st = &sessionState{pending: seq}
		s.sessions[sessionID] = st
	}

	if seq <= st.applied {
		return false
	}

	st.applied = seq
	st.table = table
	st.report = rep
	st.lastAccess = time.Now()
	return true
}
