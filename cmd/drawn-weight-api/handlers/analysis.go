// Package handlers provides HTTP handlers for the drawn-weight API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/drawn-weight/cmd/drawn-weight-api/middleware"
	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/observability"
	"github.com/spherical/drawn-weight/internal/storage"
	"github.com/spherical/drawn-weight/pkg/weigher"
)

// Analyzer is the part of *weigher.Weigher the handlers use.
type Analyzer interface {
	Weigh(ctx context.Context, path, credential string) (*weigher.Result, error)
	Record(ctx context.Context, userID string, res *weigher.Result) (*weigher.HistoryRecord, error)
	History() weigher.HistoryStore
	Exporter() *weigher.Exporter
}

// AnalysisHandler serves drawing analysis and history.
type AnalysisHandler struct {
	logger    *observability.Logger
	analyzer  Analyzer
	uploadDir string
	maxUpload int64
}

// NewAnalysisHandler creates a new analysis handler. maxUploadMB <= 0 means 25.
func NewAnalysisHandler(logger *observability.Logger, analyzer Analyzer, uploadDir string, maxUploadMB int64) *AnalysisHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &AnalysisHandler{
		logger:    logger,
		analyzer:  analyzer,
		uploadDir: uploadDir,
		maxUpload: maxUploadMB << 20,
	}
}

// AnalyzeResponseDTO is the 200 body of a successful analysis.
type AnalyzeResponseDTO struct {
	Filename           string         `json:"filename"`
	CalculatedWeightKg float64        `json:"calculated_weight_kg"`
	ExtractedData      map[string]any `json:"extracted_data"`
	Model              string         `json:"model"`
	Message            string         `json:"message"`
}

// AnalyzeFailureDTO is the 422 body when no weight could be produced.
type AnalyzeFailureDTO struct {
	Error         string         `json:"error"`
	Failure       string         `json:"failure"`
	ExtractedData map[string]any `json:"extracted_data"`
}

// HistoryRecordDTO is one history row.
type HistoryRecordDTO struct {
	ID            string         `json:"id"`
	Filename      string         `json:"filename"`
	WeightKg      float64        `json:"weight_kg"`
	Model         string         `json:"model,omitempty"`
	ExtractedData map[string]any `json:"extracted_data"`
	Timestamp     string         `json:"timestamp"`
}

// Analyze handles POST /api/v1/analysis/analyze.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "file is required", err.Error())
		return
	}
	defer file.Close()

	path, err := h.saveUpload(file, header.Filename)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to store upload", err.Error())
		return
	}
	defer os.Remove(path)

	credential := strings.TrimSpace(r.FormValue("api_key"))

	log := h.logger.WithContext(ctx).WithUser(userID)
	log.Info().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Msg("Analyzing drawing")

	res, err := h.analyzer.Weigh(ctx, path, credential)
	if err != nil {
		status := statusFor(err)
		log.Warn().Err(err).Int("status", status).Msg("Analysis failed")
		h.writeError(w, status, "analysis failed", err.Error())
		return
	}
	res.Filename = header.Filename

	if !res.Succeeded() {
		writeJSON(w, http.StatusUnprocessableEntity, AnalyzeFailureDTO{
			Error:         "could not compute weight",
			Failure:       res.Failure,
			ExtractedData: res.Raw,
		})
		return
	}

	if _, err := h.analyzer.Record(ctx, userID, res); err != nil {
		log.Error().Err(err).Msg("Failed to save history")
		h.writeError(w, http.StatusInternalServerError, "failed to save history", err.Error())
		return
	}

	model := ""
	if res.Outcome != nil {
		model = res.Outcome.Model
	}
	writeJSON(w, http.StatusOK, AnalyzeResponseDTO{
		Filename:           res.Filename,
		CalculatedWeightKg: *res.WeightKg,
		ExtractedData:      res.Raw,
		Model:              model,
		Message:            fmt.Sprintf("Estimated weight %.3f kg", *res.WeightKg),
	})
}

// History handles GET /api/v1/analysis/history.
func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := h.analyzer.History()
	if store == nil {
		h.writeError(w, http.StatusServiceUnavailable, "history is disabled", "")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}

	recs, err := store.ListByUser(ctx, middleware.UserFromContext(ctx), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to list history", err.Error())
		return
	}

	out := make([]HistoryRecordDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, HistoryRecordDTO{
			ID:            rec.ID.String(),
			Filename:      rec.Filename,
			WeightKg:      rec.WeightKg,
			Model:         rec.Model,
			ExtractedData: rec.ExtractedData,
			Timestamp:     rec.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Export handles GET /api/v1/analysis/history/export.
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	exporter := h.analyzer.Exporter()
	if exporter == nil {
		h.writeError(w, http.StatusServiceUnavailable, "history is disabled", "")
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid limit", err.Error())
		return
	}

	userID := middleware.UserFromContext(ctx)
	data, err := exporter.HistoryXLSX(ctx, userID, limit, nil)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "export failed", err.Error())
		return
	}

	name := fmt.Sprintf("history_%s_%s.xlsx", userID, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// saveUpload copies the upload to a uuid-named file, keeping the extension so
// format detection still sees it.
func (h *AnalysisHandler) saveUpload(src io.Reader, original string) (string, error) {
	dir := h.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(original)))

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return storage.DefaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	return n, nil
}

// statusFor maps a hard pipeline error to an HTTP status.
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch domain.TypeOf(err) {
	case domain.ErrorTypeValidation, domain.ErrorTypeConversion, domain.ErrorTypeConfig:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *AnalysisHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}
