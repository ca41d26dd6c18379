package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/spherical/drawn-weight/internal/domain"
)

// GeminiModel calls one Gemini model through the Google AI SDK. A client is
// created per call because the API key arrives with each request.
type GeminiModel struct {
	name        string
	temperature float32
	clientOpts  []option.ClientOption
}

// NewGeminiModel creates a Gemini vision model handle. Extra client options
// (endpoint overrides, HTTP clients) are appended after the API key.
func NewGeminiModel(name string, temperature float32, opts ...option.ClientOption) *GeminiModel {
	return &GeminiModel{
		name:        name,
		temperature: temperature,
		clientOpts:  opts,
	}
}

// Name returns the model identifier.
func (m *GeminiModel) Name() string {
	return m.name
}

// Generate sends prompt and image, returning the response text ("" when the
// model produced no text part).
func (m *GeminiModel) Generate(ctx context.Context, credential, prompt string, image domain.Image) (string, error) {
	if credential == "" {
		return "", domain.ConfigError("Gemini API key is empty", domain.ErrMissingCredential)
	}

	opts := append([]option.ClientOption{option.WithAPIKey(credential)}, m.clientOpts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", domain.APIError("Failed to create Gemini client", err)
	}
	defer client.Close()

	model := client.GenerativeModel(m.name)
	model.SetTemperature(m.temperature)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: image.MIMEType, Data: image.Data},
	)
	if err != nil {
		return "", domain.APIError(fmt.Sprintf("%s generate", m.name), err)
	}

	return responseText(resp), nil
}

// responseText joins the text parts of the first candidate that has content.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}
