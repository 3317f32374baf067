package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"gemchat/internal/logger"
	"gemchat/pkg/chattypes"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the model used when none is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIClient implements chattypes.ModelClient with OpenAI streaming chat completions.
type OpenAIClient struct {
	apiKey  string
	model   string
	baseURL string

	mu     sync.Mutex
	client *openai.Client
}

// NewOpenAIClient creates an OpenAI client. An empty model selects DefaultOpenAIModel.
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w for provider openai", ErrMissingAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{apiKey: apiKey, model: model}, nil
}

// GetProviderName returns the provider name for this client.
func (c *OpenAIClient) GetProviderName() string {
	return "openai"
}

// GetModelName returns the model used for every turn.
func (c *OpenAIClient) GetModelName() string {
	return c.model
}

// SetBaseURL points the client at an OpenAI-compatible endpoint.
func (c *OpenAIClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = baseURL
	c.client = nil
}

func (c *OpenAIClient) initializeClientIfNeeded() *openai.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client
	}

	options := []option.RequestOption{option.WithAPIKey(c.apiKey)}
	if c.baseURL != "" {
		options = append(options, option.WithBaseURL(c.baseURL))
	}

	client := openai.NewClient(options...)
	c.client = &client
	logger.Debug("OpenAI client initialized", "provider", "openai", "model", c.model)
	return c.client
}

// StreamChat streams one turn from OpenAI.
func (c *OpenAIClient) StreamChat(ctx context.Context, history []chattypes.Message, newText string) (<-chan chattypes.StreamChunk, error) {
	client := c.initializeClientIfNeeded()

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: convertMessagesToOpenAI(turnMessages(history, newText)),
	}
	logger.Debug("OpenAI stream starting", "model", c.model, "message_count", len(params.Messages))

	stream := client.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan chattypes.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		chunks := 0
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
				continue
			}
			chunks++
			if !emitChunk(ctx, out, chattypes.StreamChunk{Content: chunk.Choices[0].Delta.Content}) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			logger.Error("OpenAI stream failed", "error", err, "chunks", chunks)
			emitChunk(ctx, out, chattypes.StreamChunk{Error: fmt.Errorf("openai stream failed: %w", err)})
			return
		}

		logger.Debug("OpenAI stream completed", "chunks", chunks)
		emitChunk(ctx, out, chattypes.StreamChunk{Done: true})
	}()

	return out, nil
}

// convertMessagesToOpenAI prepends the fixed system instruction to the turn.
func convertMessagesToOpenAI(messages []chattypes.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	out = append(out, openai.SystemMessage(SystemInstruction))
	for _, msg := range messages {
		switch msg.Role {
		case chattypes.RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case chattypes.RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		}
	}
	return out
}
