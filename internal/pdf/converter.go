package pdf

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/google/uuid"

	"github.com/spherical/drawn-weight/internal/domain"
	"github.com/spherical/drawn-weight/internal/observability"
)

// document is the subset of *fitz.Document the converter needs
type document interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

type openFunc func(path string) (document, error)

func openFitz(path string) (document, error) {
	return fitz.New(path)
}

// Options controls rasterization of paginated input
type Options struct {
	TempDir string // "" means os.TempDir()
	DPI     int
	Quality int
}

// DefaultOptions matches the resolution used for drawing scans: 200 DPI, JPEG quality 85.
func DefaultOptions() Options {
	return Options{DPI: 200, Quality: 85}
}

// Converter implements domain.Preprocessor using go-fitz for PDF input
type Converter struct {
	opts      Options
	validator *Validator
	logger    *observability.Logger
	open      openFunc
}

// NewConverter creates a new drawing converter
func NewConverter(opts Options, logger *observability.Logger) (*Converter, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	validator := NewValidator(logger)
	if err := validator.ValidateQuality(opts.Quality); err != nil {
		return nil, err
	}
	if err := validator.ValidateDPI(opts.DPI); err != nil {
		return nil, err
	}

	return &Converter{
		opts:      opts,
		validator: validator,
		logger:    logger.WithOperation("preprocess"),
		open:      openFitz,
	}, nil
}

// ToRaster returns the image to send for extraction. Raster input is passed
// through untouched; a PDF has only its first page rendered into a fresh
// temp directory that Release removes.
func (c *Converter) ToRaster(ctx context.Context, inputPath string) (*domain.RasterImage, error) {
	if err := c.validator.ValidateInputPath(inputPath); err != nil {
		return nil, err
	}

	format, err := DetectFormat(inputPath)
	if err != nil {
		return nil, domain.IOError("Failed to read input", err)
	}

	switch format.Kind {
	case KindRaster:
		c.logger.Debug().Str("path", inputPath).Str("mime", format.MIME).Msg("Raster input, no conversion")
		return domain.NewRasterImage(inputPath, format.MIME, false, nil), nil
	case KindDocument:
		return c.convertFirstPage(ctx, inputPath)
	default:
		return nil, domain.ValidationError(
			fmt.Sprintf("cannot process %s (detected %s)", filepath.Base(inputPath), format.MIME),
			domain.ErrUnsupportedInputFormat,
		)
	}
}

func (c *Converter) convertFirstPage(ctx context.Context, pdfPath string) (*domain.RasterImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := c.open(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("Failed to open PDF", fmt.Errorf("%w: %v", domain.ErrConversionFailed, err))
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.ConversionError("PDF has no pages", domain.ErrConversionFailed)
	}

	tempDir, err := os.MkdirTemp(c.opts.TempDir, "drawn-weight-*")
	if err != nil {
		return nil, domain.IOError("Failed to create temp directory", err)
	}
	release := func() error { return os.RemoveAll(tempDir) }

	raster, err := c.renderPage(ctx, doc, tempDir)
	if err != nil {
		if rmErr := release(); rmErr != nil {
			c.logger.Warn().Err(rmErr).Str("dir", tempDir).Msg("Failed to remove temp directory")
		}
		return nil, err
	}

	img := domain.NewRasterImage(raster.path, "image/jpeg", true, release)
	img.SourcePages = pageCount
	img.Width = raster.width
	img.Height = raster.height

	c.logger.Debug().
		Str("pdf", pdfPath).
		Str("image", raster.path).
		Int("pages", pageCount).
		Int("width", raster.width).
		Int("height", raster.height).
		Msg("Rendered first page")

	return img, nil
}

type renderedPage struct {
	path          string
	width, height int
}

func (c *Converter) renderPage(ctx context.Context, doc document, dir string) (*renderedPage, error) {
	img, err := doc.ImageDPI(0, float64(c.opts.DPI))
	if err != nil {
		return nil, domain.ConversionError("Failed to render page 1", fmt.Errorf("%w: %v", domain.ErrConversionFailed, err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outputPath := filepath.Join(dir, uuid.NewString()+".jpg")
	outputFile, err := os.Create(outputPath)
	if err != nil {
		return nil, domain.IOError("Failed to create output file for page 1", err)
	}

	err = jpeg.Encode(outputFile, img, &jpeg.Options{Quality: c.opts.Quality})
	closeErr := outputFile.Close()
	if err != nil {
		return nil, domain.ConversionError("Failed to encode page 1 as JPG", fmt.Errorf("%w: %v", domain.ErrConversionFailed, err))
	}
	if closeErr != nil {
		return nil, domain.IOError("Failed to write page 1", closeErr)
	}

	bounds := img.Bounds()
	return &renderedPage{path: outputPath, width: bounds.Dx(), height: bounds.Dy()}, nil
}
