package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spherical/drawn-weight/internal/domain"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterModel calls one model through OpenRouter's chat completions API
type OpenRouterModel struct {
	name        string
	url         string
	temperature float32
	httpClient  *http.Client
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature"`
	Stream      bool      `json:"stream"`
}

// Response represents the API response structure
type Response struct {
	ID      string    `json:"id"`
	Choices []Choice  `json:"choices"`
	Error   *APIFault `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant reply inside a choice
type ChoiceMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// APIFault is the error object OpenRouter returns, sometimes with HTTP 200
type APIFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewOpenRouterModel creates a model handle. An empty url uses the public endpoint.
func NewOpenRouterModel(name, url string, temperature float32, httpClient *http.Client) *OpenRouterModel {
	if url == "" {
		url = defaultOpenRouterURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenRouterModel{
		name:        name,
		url:         url,
		temperature: temperature,
		httpClient:  httpClient,
	}
}

// Name returns the model identifier.
func (m *OpenRouterModel) Name() string {
	return m.name
}

// Generate sends prompt and image in one non-streaming request.
func (m *OpenRouterModel) Generate(ctx context.Context, credential, prompt string, image domain.Image) (string, error) {
	if credential == "" {
		return "", domain.ConfigError("OpenRouter API key is empty", domain.ErrMissingCredential)
	}

	body, err := json.Marshal(m.buildRequest(prompt, image))
	if err != nil {
		return "", domain.APIError("Failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return "", domain.APIError("Failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("HTTP-Referer", "https://github.com/spherical/drawn-weight")
	req.Header.Set("X-Title", "Drawn Part Weight Estimator")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", domain.APIError("Failed to send request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.APIError("Failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", domain.APIError(fmt.Sprintf("%s returned an error", m.name),
			&StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 512)})
	}

	var parsed Response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", domain.APIError("Failed to decode response", err)
	}
	if parsed.Error != nil {
		return "", domain.APIError(fmt.Sprintf("%s returned an error", m.name),
			&StatusError{Code: parsed.Error.Code, Body: parsed.Error.Message})
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

func (m *OpenRouterModel) buildRequest(prompt string, image domain.Image) *Request {
	mime := image.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	imageURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image.Data)

	msg := Message{
		Role: "user",
		Content: []ContentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		},
	}

	return &Request{
		Model:       m.name,
		Messages:    []Message{msg},
		Temperature: m.temperature,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
