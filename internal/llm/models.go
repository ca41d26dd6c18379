package llm

import (
	"fmt"
	"net/http"

	"github.com/spherical/drawn-weight/internal/domain"
)

// Options configures the model handles created by NewModels.
type Options struct {
	Temperature   float32
	OpenRouterURL string
	HTTPClient    *http.Client
}

// NewModels builds the ordered fallback list for provider. Order is preserved.
func NewModels(provider string, names []string, opts Options) ([]domain.VisionModel, error) {
	if len(names) == 0 {
		return nil, domain.ConfigError("no vision models listed", domain.ErrNoModelsConfigured)
	}

	models := make([]domain.VisionModel, 0, len(names))
	for _, name := range names {
		switch provider {
		case "gemini", "":
			models = append(models, NewGeminiModel(name, opts.Temperature))
		case "openrouter":
			models = append(models, NewOpenRouterModel(name, opts.OpenRouterURL, opts.Temperature, opts.HTTPClient))
		default:
			return nil, domain.ConfigError(fmt.Sprintf("unknown vision provider %q", provider), nil)
		}
	}
	return models, nil
}
