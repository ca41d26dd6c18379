package domain

import (
	"context"

	"github.com/google/uuid"
)

// Preprocessor turns an input drawing into exactly one raster image
type Preprocessor interface {
	// ToRaster returns the raster to send for extraction; callers must Release it
	ToRaster(ctx context.Context, inputPath string) (*RasterImage, error)
}

// VisionModel is one named model behind a vision-capable inference service.
// The credential is supplied per call and passed through untouched.
type VisionModel interface {
	Name() string
	Generate(ctx context.Context, credential, prompt string, image Image) (string, error)
}

// Extractor drives model attempts for a single image
type Extractor interface {
	Extract(ctx context.Context, image Image, credential string) (*ExtractionOutcome, error)
}

// Calculator turns dimensions into mass
type Calculator interface {
	Compute(dims DimensionSet) (*WeightBreakdown, error)
}

// HistoryStore persists successful analyses per user
type HistoryStore interface {
	Save(ctx context.Context, rec *HistoryRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]HistoryRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*HistoryRecord, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
