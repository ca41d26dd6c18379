package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spherical/drawn-weight/cmd/drawn-weight-api/middleware"
	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/export"
	"github.com/spherical/drawn-weight/internal/observability"
	"github.com/spherical/drawn-weight/pkg/weigher"
)

type memoryStore struct {
	recs []domain.HistoryRecord
}

func (s *memoryStore) Save(ctx context.Context, rec *domain.HistoryRecord) error {
	rec.ID = uuid.New()
	rec.Timestamp = time.Now().UTC()
	s.recs = append([]domain.HistoryRecord{*rec}, s.recs...)
	return nil
}

func (s *memoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	out := []domain.HistoryRecord{}
	for _, r := range s.recs {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.HistoryRecord, error) {
	return nil, domain.ErrNotFound
}

func (s *memoryStore) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return 0, nil
}

type fakeAnalyzer struct {
	store      *memoryStore
	result     *weigher.Result
	err        error
	credential string
	sawFile    bool
}

func (a *fakeAnalyzer) Weigh(ctx context.Context, path, credential string) (*weigher.Result, error) {
	a.credential = credential
	_, statErr := os.Stat(path)
	a.sawFile = statErr == nil
	if a.err != nil {
		return nil, a.err
	}
	res := *a.result
	return &res, nil
}

func (a *fakeAnalyzer) Record(ctx context.Context, userID string, res *weigher.Result) (*weigher.HistoryRecord, error) {
	rec := &domain.HistoryRecord{UserID: userID, Filename: res.Filename, WeightKg: *res.WeightKg, ExtractedData: res.Raw}
	return rec, a.store.Save(ctx, rec)
}

func (a *fakeAnalyzer) History() weigher.HistoryStore { return a.store }

func (a *fakeAnalyzer) Exporter() *weigher.Exporter {
	return export.NewService(a.store, observability.NopLogger())
}

func uploadRequest(t *testing.T, filename, apiKey string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	if apiKey != "" {
		require.NoError(t, mw.WriteField("api_key", apiKey))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.WithUser(req.Context(), "alice"))
}

func newHandler(t *testing.T, a *fakeAnalyzer) *AnalysisHandler {
	return NewAnalysisHandler(observability.NopLogger(), a, t.TempDir(), 1)
}

func successResult() *weigher.Result {
	return &weigher.Result{
		Filename: "ignored.pdf",
		WeightKg: domain.Float(0.085),
		Raw:      map[string]any{"outer_width": 100.0, "outer_height": 80.0, "draw_depth": 10.0},
		Outcome:  &domain.ExtractionOutcome{Model: "gemini-2.0-flash"},
	}
}

func TestAnalyze_Success(t *testing.T) {
	a := &fakeAnalyzer{store: &memoryStore{}, result: successResult()}
	h := newHandler(t, a)

	rec := httptest.NewRecorder()
	h.Analyze(rec, uploadRequest(t, "part.pdf", "form-key"))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnalyzeResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "part.pdf", resp.Filename)
	assert.Equal(t, 0.085, resp.CalculatedWeightKg)
	assert.Equal(t, "gemini-2.0-flash", resp.Model)
	assert.Equal(t, 100.0, resp.ExtractedData["outer_width"])

	assert.Equal(t, "form-key", a.credential)
	assert.True(t, a.sawFile)
	require.Len(t, a.store.recs, 1)
	assert.Equal(t, "alice", a.store.recs[0].UserID)
	assert.Equal(t, "part.pdf", a.store.recs[0].Filename)
}

func TestAnalyze_RemovesUpload(t *testing.T) {
	dir := t.TempDir()
	a := &fakeAnalyzer{store: &memoryStore{}, result: successResult()}
	h := NewAnalysisHandler(observability.NopLogger(), a, dir, 1)

	rec := httptest.NewRecorder()
	h.Analyze(rec, uploadRequest(t, "part.pdf", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, a.credential)
}

func TestAnalyze_FailureIs422AndNotSaved(t *testing.T) {
	res := &weigher.Result{
		Filename: "part.pdf",
		Raw:      map[string]any{"outer_width": 100.0},
		Failure:  "missing-required-field: outer_height is required",
	}
	a := &fakeAnalyzer{store: &memoryStore{}, result: res}
	h := newHandler(t, a)

	rec := httptest.NewRecorder()
	h.Analyze(rec, uploadRequest(t, "part.pdf", ""))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp AnalyzeFailureDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, res.Failure, resp.Failure)
	assert.Equal(t, 100.0, resp.ExtractedData["outer_width"])
	assert.Empty(t, a.store.recs)
}

func TestAnalyze_HardErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"missing credential", domain.ConfigError("no api key", domain.ErrMissingCredential), http.StatusBadRequest},
		{"unsupported input", domain.ConversionError("bad file", domain.ErrUnsupportedInputFormat), http.StatusBadRequest},
		{"io", domain.IOError("disk", errors.New("full")), http.StatusInternalServerError},
		{"deadline", domain.ExtractionError("cancelled", context.DeadlineExceeded), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{store: &memoryStore{}, err: tt.err}
			rec := httptest.NewRecorder()
			newHandler(t, a).Analyze(rec, uploadRequest(t, "part.pdf", ""))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("api_key", "k"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	newHandler(t, &fakeAnalyzer{store: &memoryStore{}}).Analyze(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryAndExport(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, &domain.HistoryRecord{UserID: "alice", Filename: "a.pdf", WeightKg: 0.1, ExtractedData: map[string]any{}}))
	require.NoError(t, store.Save(ctx, &domain.HistoryRecord{UserID: "bob", Filename: "b.pdf", WeightKg: 0.2, ExtractedData: map[string]any{}}))
	require.NoError(t, store.Save(ctx, &domain.HistoryRecord{UserID: "alice", Filename: "c.pdf", WeightKg: 0.3, ExtractedData: map[string]any{}}))
	h := newHandler(t, &fakeAnalyzer{store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/history", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), "alice"))
	rec := httptest.NewRecorder()
	h.History(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var list []HistoryRecordDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "c.pdf", list[0].Filename)
	assert.Equal(t, "a.pdf", list[1].Filename)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/analysis/history/export", nil)
	req = req.WithContext(middleware.WithUser(req.Context(), "alice"))
	rec = httptest.NewRecorder()
	h.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".xlsx")
	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestHistory_InvalidLimit(t *testing.T) {
	h := newHandler(t, &fakeAnalyzer{store: &memoryStore{}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analysis/history?limit=abc", nil)
	rec := httptest.NewRecorder()
	h.History(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze_LogsCarryUser(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "info", Output: &buf})
	a := &fakeAnalyzer{store: &memoryStore{}, err: domain.IOError("disk", errors.New("full"))}
	h := NewAnalysisHandler(logger, a, t.TempDir(), 1)

	rec := httptest.NewRecorder()
	h.Analyze(rec, uploadRequest(t, "part.pdf", ""))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, raw := range lines {
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		assert.Equal(t, "alice", line["user_id"])
	}
}
