package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"gemchat/internal/logger"
	"gemchat/pkg/chattypes"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the model used when none is configured.
const DefaultGeminiModel = "gemini-3-pro-preview"

// GeminiClient implements chattypes.ModelClient for the Google Gemini API.
// The SDK client is created lazily on the first turn.
type GeminiClient struct {
	apiKey     string
	model      string
	httpClient *http.Client

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiClient creates a Gemini client. An empty model selects DefaultGeminiModel.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w for provider gemini", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{apiKey: apiKey, model: model}, nil
}

// GetProviderName returns the provider name for this client.
func (c *GeminiClient) GetProviderName() string {
	return "gemini"
}

// GetModelName returns the model used for every turn.
func (c *GeminiClient) GetModelName() string {
	return c.model
}

// SetHTTPClient overrides the HTTP client used by the SDK.
func (c *GeminiClient) SetHTTPClient(httpClient *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.httpClient = httpClient
	// Force re-initialization with the new transport.
	c.client = nil
}

func (c *GeminiClient) initializeClientIfNeeded(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.httpClient != nil {
		clientConfig.HTTPClient = c.httpClient
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	logger.Debug("Gemini client initialized", "provider", "gemini", "model", c.model)

	c.client = client
	return client, nil
}

// StreamChat streams one turn from Gemini.
func (c *GeminiClient) StreamChat(ctx context.Context, history []chattypes.Message, newText string) (<-chan chattypes.StreamChunk, error) {
	client, err := c.initializeClientIfNeeded(ctx)
	if err != nil {
		return nil, err
	}

	contents := convertMessagesToGemini(turnMessages(history, newText))
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
	}
	logger.Debug("Gemini stream starting", "model", c.model, "content_count", len(contents))

	out := make(chan chattypes.StreamChunk)
	go func() {
		defer close(out)

		chunks := 0
		for result, err := range client.Models.GenerateContentStream(ctx, c.model, contents, config) {
			if err != nil {
				logger.Error("Gemini stream failed", "error", err, "chunks", chunks)
				emitChunk(ctx, out, chattypes.StreamChunk{Error: fmt.Errorf("gemini stream failed: %w", err)})
				return
			}
			text := extractGeminiText(result)
			if text == "" {
				continue
			}
			chunks++
			if !emitChunk(ctx, out, chattypes.StreamChunk{Content: text}) {
				return
			}
		}

		logger.Debug("Gemini stream completed", "chunks", chunks)
		emitChunk(ctx, out, chattypes.StreamChunk{Done: true})
	}()

	return out, nil
}

// convertMessagesToGemini maps gemchat roles to Gemini roles ("assistant" becomes "model").
// The system instruction travels separately in GenerateContentConfig.
func convertMessagesToGemini(messages []chattypes.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case chattypes.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	return contents
}

// extractGeminiText concatenates the text parts of one streamed response, skipping thoughts.
func extractGeminiText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	var b strings.Builder
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" || part.Thought {
				continue
			}
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
