// Package export renders analysis history as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/extract"
	"github.com/spherical/drawn-weight/internal/observability"
)

// SheetName is the single worksheet in every export.
const SheetName = "History"

// Headers are the export columns, in order.
var Headers = []string{
	"Timestamp",
	"Filename",
	"Shape",
	"Outer W",
	"Outer H",
	"Depth",
	"Draw W",
	"Draw H",
	"Draw Ø",
	"Cutout Ø",
	"Weight (kg)",
}

// ProgressFunc is called after each data row is written.
type ProgressFunc func(done, total int)

// Service produces XLSX bytes from the history store.
type Service struct {
	store  domain.HistoryStore
	logger *observability.Logger
}

// NewService creates an export service over store.
func NewService(store domain.HistoryStore, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{store: store, logger: logger.WithOperation("export")}
}

// HistoryXLSX exports up to limit of the user's records, newest first.
// progress may be nil.
func (s *Service) HistoryXLSX(ctx context.Context, userID string, limit int, progress ProgressFunc) ([]byte, error) {
	start := time.Now()

	recs, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	data, err := WriteRecords(recs, progress)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("user_id", userID).
		Int("rows", len(recs)).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("History exported")
	return data, nil
}

// WriteRecords builds the workbook for recs.
func WriteRecords(recs []domain.HistoryRecord, progress ProgressFunc) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}

	for i, rec := range recs {
		if err := f.SetSheetRow(SheetName, rowCell(i+2), rowValues(rec)); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", i+2, err)
		}
		if progress != nil {
			progress(i+1, len(recs))
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 20) // timestamp
	_ = f.SetColWidth(SheetName, "B", "B", 32) // filename
	_ = f.SetColWidth(SheetName, "C", "C", 12)
	_ = f.SetColWidth(SheetName, "D", "K", 11)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func rowCell(row int) string {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	return cell
}

func rowValues(rec domain.HistoryRecord) *[]interface{} {
	dims := extract.Normalize(rec.ExtractedData)
	shape := dims.ShapeType
	if shape == "" {
		shape = domain.ShapeRectangular
	}

	values := []interface{}{
		rec.Timestamp.UTC().Format("2006-01-02 15:04:05"),
		rec.Filename,
		string(shape),
		optional(dims.OuterWidth),
		optional(dims.OuterHeight),
		optional(dims.DrawDepth),
		dims.DrawWidth,
		dims.DrawHeight,
		optional(dims.DrawDiameter),
		dims.CutoutDiameter,
		rec.WeightKg,
	}
	return &values
}

// optional renders a missing measurement as an empty cell.
func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
