package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/spherical/drawn-weight/internal/domain"
)

type fakeStore struct {
	records   []domain.HistoryRecord
	err       error
	lastUser  string
	lastLimit int
}

func (s *fakeStore) Save(context.Context, *domain.HistoryRecord) error { return nil }

func (s *fakeStore) ListByUser(_ context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	s.lastUser, s.lastLimit = userID, limit
	return s.records, s.err
}

func (s *fakeStore) GetByID(context.Context, uuid.UUID) (*domain.HistoryRecord, error) {
	return nil, domain.ErrNotFound
}

func (s *fakeStore) DeleteByUser(context.Context, string) (int64, error) { return 0, nil }

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	return rows
}

func TestHistoryXLSX(t *testing.T) {
	at := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	store := &fakeStore{records: []domain.HistoryRecord{
		{
			ID: uuid.New(), UserID: "alice", Filename: "box.pdf", WeightKg: 0.085, Timestamp: at,
			ExtractedData: map[string]any{
				"shape_type": "rectangular", "outer_width": 150.0, "outer_height": 100.0,
				"draw_depth": 19.05, "draw_width": 120.0, "draw_height": 70.0,
				"draw_diameter": nil, "cutout_diameter": nil,
			},
		},
		{
			ID: uuid.New(), UserID: "alice", Filename: "cup.png", WeightKg: 0.312, Timestamp: at.Add(-time.Hour),
			ExtractedData: map[string]any{
				"shape_type": "round", "outer_width": 200.0, "outer_height": 200.0,
				"draw_depth": 50.0, "draw_diameter": 150.0, "cutout_diameter": "30 mm",
			},
		},
	}}

	var progress []int
	svc := NewService(store, nil)
	data, err := svc.HistoryXLSX(context.Background(), "alice", 50, func(done, total int) {
		assert.Equal(t, 2, total)
		progress = append(progress, done)
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", store.lastUser)
	assert.Equal(t, 50, store.lastLimit)
	assert.Equal(t, []int{1, 2}, progress)

	rows := readRows(t, data)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers, rows[0])

	assert.Equal(t, []string{
		"2026-04-02 09:30:00", "box.pdf", "rectangular",
		"150", "100", "19.05", "120", "70", "", "0", "0.085",
	}, rows[1])

	round := rows[2]
	assert.Equal(t, "round", round[2])
	assert.Equal(t, "150", round[8])
	assert.Equal(t, "30", round[9])
	assert.Equal(t, "0.312", round[10])
}

func TestHistoryXLSX_Empty(t *testing.T) {
	data, err := NewService(&fakeStore{}, nil).HistoryXLSX(context.Background(), "nobody", 0, nil)
	require.NoError(t, err)

	rows := readRows(t, data)
	require.Len(t, rows, 1)
	assert.Equal(t, Headers, rows[0])
}

func TestHistoryXLSX_StoreError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	_, err := NewService(store, nil).HistoryXLSX(context.Background(), "alice", 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
