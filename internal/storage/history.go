package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/drawn-weight/internal/domain"
)

// List limits for ListByUser.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// HistoryRepository implements domain.HistoryStore over database/sql.
type HistoryRepository struct {
	db DB
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Save inserts rec, assigning an id and timestamp when unset.
func (r *HistoryRepository) Save(ctx context.Context, rec *domain.HistoryRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return domain.ValidationError("history record needs a user id", nil)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC()

	data, err := json.Marshal(rec.ExtractedData)
	if err != nil {
		return fmt.Errorf("encode extracted data: %w", err)
	}

	query := `
		INSERT INTO scan_history (id, user_id, filename, weight_kg, extracted_data, model, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.UserID, rec.Filename, rec.WeightKg, string(data), rec.Model, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// ListByUser returns the user's records, newest first. limit <= 0 means
// DefaultListLimit; values above MaxListLimit are capped.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	query := `
		SELECT id, user_id, filename, weight_kg, extracted_data, model, created_at
		FROM scan_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	records := []domain.HistoryRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// GetByID returns the record with id, or domain.ErrNotFound.
func (r *HistoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.HistoryRecord, error) {
	query := `
		SELECT id, user_id, filename, weight_kg, extracted_data, model, created_at
		FROM scan_history WHERE id = $1
	`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

// DeleteByUser removes every record for userID and returns how many went.
func (r *HistoryRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scan_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*domain.HistoryRecord, error) {
	var (
		rec  domain.HistoryRecord
		id   string
		data []byte
	)
	if err := row.Scan(&id, &rec.UserID, &rec.Filename, &rec.WeightKg, &data, &rec.Model, &rec.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan history: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse history id %q: %w", id, err)
	}
	rec.ID = parsed
	rec.Timestamp = rec.Timestamp.UTC()

	if len(data) > 0 {
		if err := json.Unmarshal(data, &rec.ExtractedData); err != nil {
			return nil, fmt.Errorf("decode extracted data: %w", err)
		}
	}
	return &rec, nil
}

var _ domain.HistoryStore = (*HistoryRepository)(nil)
