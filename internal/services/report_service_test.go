package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"edalens/internal/config"
	"edalens/internal/dataset"
	"edalens/internal/report"
)

type capturedEvent struct {
	sessionID string
	eventType string
}

// fakeNotifier records events instead of pushing them to websockets
type fakeNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (f *fakeNotifier) NotifySession(_ context.Context, sessionID, eventType string, _ interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, capturedEvent{sessionID: sessionID, eventType: eventType})
}

func (f *fakeNotifier) captured() []capturedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func newTestService(t *testing.T, notifier SessionNotifier) *ReportService {
	t.Helper()

	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := NewReportService(cfg, logger, notifier, otel.Meter("test"))
	require.NoError(t, err)
	return svc
}

func uploadCSV(t *testing.T, svc *ReportService, sessionID, csv string) *report.Report {
	t.Helper()

	req := UploadRequest{Filename: "data.csv", Size: int64(len(csv))}
	rep, err := svc.CreateReport(context.Background(), sessionID, req, []byte(csv))
	require.NoError(t, err)
	return rep
}

func TestCreateReportInstallsCurrentReport(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(t, notifier)

	rep := uploadCSV(t, svc, "session-1", "a,b\n1,2\n3,4\n")
	assert.Equal(t, 2, rep.Shape.Rows)
	assert.Equal(t, 2, rep.Shape.Cols)

	current, err := svc.CurrentReport(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Equal(t, rep, current)

	events := notifier.captured()
	require.Len(t, events, 1)
	assert.Equal(t, "session-1", events[0].sessionID)
	assert.Equal(t, EventReportReady, events[0].eventType)
}

func TestCurrentReportWithoutUpload(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CurrentReport(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestCreateReportValidation(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateReport(context.Background(), "s", UploadRequest{Filename: "", Size: 3}, []byte("a\n1"))
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestCreateReportSizeLimit(t *testing.T) {
	svc := newTestService(t, nil)
	svc.cfg.Upload.MaxBytes = 8

	raw := []byte("a,b\n1,2\n3,4\n")
	_, err := svc.CreateReport(context.Background(), "s", UploadRequest{Filename: "big.csv", Size: int64(len(raw))}, raw)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestCreateReportParseFailure(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateReport(context.Background(), "s",
		UploadRequest{Filename: "bad.csv", Size: 12}, []byte("a,b\n1\n2,3,4\n"))
	assert.ErrorIs(t, err, dataset.ErrParse)

	// A failed upload must not leave a report behind
	_, err = svc.CurrentReport(context.Background(), "s")
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestCreateReportEmptyDataset(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.CreateReport(context.Background(), "s",
		UploadRequest{Filename: "header.csv", Size: 4}, []byte("a,b\n"))
	assert.ErrorIs(t, err, dataset.ErrEmpty)
}

func TestLastUploadWins(t *testing.T) {
	svc := newTestService(t, nil)

	// Claim two sequence numbers, then commit them out of order: the
	// earlier upload finishing last must not displace the later one
	first := svc.claimSequence("s")
	second := svc.claimSequence("s")
	require.Less(t, first, second)

	gen := report.NewGenerator(nil)

	tableSecond, err := dataset.Parse("second.csv", []byte("x\n10\n20\n"))
	require.NoError(t, err)
	repSecond, err := gen.Generate(context.Background(), tableSecond)
	require.NoError(t, err)

	tableFirst, err := dataset.Parse("first.csv", []byte("x\n1\n2\n3\n"))
	require.NoError(t, err)
	repFirst, err := gen.Generate(context.Background(), tableFirst)
	require.NoError(t, err)

	assert.True(t, svc.commit("s", second, tableSecond, repSecond))
	assert.False(t, svc.commit("s", first, tableFirst, repFirst))

	current, err := svc.CurrentReport(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Shape.Rows)
}

func TestConcurrentUploadsLeaveOneReport(t *testing.T) {
	svc := newTestService(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uploadCSV(t, svc, "shared", "a,b\n1,2\n3,4\n")
		}()
	}
	wg.Wait()

	current, err := svc.CurrentReport(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, current.Shape.Rows)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestSessionsAreIsolated(t *testing.T) {
	svc := newTestService(t, nil)

	uploadCSV(t, svc, "alpha", "a\n1\n2\n")
	uploadCSV(t, svc, "beta", "b\n1\n2\n3\n")

	alpha, err := svc.CurrentReport(context.Background(), "alpha")
	require.NoError(t, err)
	beta, err := svc.CurrentReport(context.Background(), "beta")
	require.NoError(t, err)

	assert.Equal(t, 2, alpha.Shape.Rows)
	assert.Equal(t, 3, beta.Shape.Rows)
}

func TestBoxplot(t *testing.T) {
	svc := newTestService(t, nil)
	uploadCSV(t, svc, "s", "score,label\n1,a\n2,b\n3,c\n4,d\n")

	box, err := svc.Boxplot(context.Background(), "s", "score")
	require.NoError(t, err)
	assert.Equal(t, "score", box.Column)
	assert.Equal(t, 4, box.Count)

	_, err = svc.Boxplot(context.Background(), "s", "label")
	assert.ErrorIs(t, err, report.ErrColumnNotNumeric)

	_, err = svc.Boxplot(context.Background(), "s", "missing")
	assert.ErrorIs(t, err, report.ErrColumnNotFound)

	_, err = svc.Boxplot(context.Background(), "other-session", "score")
	assert.ErrorIs(t, err, ErrNoReport)
}

func TestClearReport(t *testing.T) {
	notifier := &fakeNotifier{}
	svc := newTestService(t, notifier)

	uploadCSV(t, svc, "s", "a\n1\n")
	require.NoError(t, svc.ClearReport(context.Background(), "s"))

	_, err := svc.CurrentReport(context.Background(), "s")
	assert.ErrorIs(t, err, ErrNoReport)

	assert.ErrorIs(t, svc.ClearReport(context.Background(), "s"), ErrNoReport)

	events := notifier.captured()
	require.Len(t, events, 2)
	assert.Equal(t, EventReportCleared, events[1].eventType)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	svc := newTestService(t, nil)
	svc.cfg.Session.IdleTTL = 10 * time.Millisecond

	uploadCSV(t, svc, "stale", "a\n1\n")
	time.Sleep(30 * time.Millisecond)
	uploadCSV(t, svc, "fresh", "a\n1\n")

	svc.sweep()

	_, err := svc.CurrentReport(context.Background(), "stale")
	assert.ErrorIs(t, err, ErrNoReport)
	_, err = svc.CurrentReport(context.Background(), "fresh")
	assert.NoError(t, err)
}
