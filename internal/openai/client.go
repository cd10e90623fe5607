package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kinesica-health/kinesica/internal/domain"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultCompletionModel is the OpenAI model used for chat completions
	DefaultCompletionModel = openai.GPT4oMini
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = domain.EmbeddingDimensions
	// maxEmbeddingInputChars is the input ceiling sent to the embedding endpoint
	maxEmbeddingInputChars = 8000
)

var (
	// ErrEmptyText is returned when text is empty after sanitization
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// EmbeddingAPI defines the interface over the raw embedding endpoint
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionAPI defines the interface over the raw chat completion endpoint
type CompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps the OpenAI API client for embeddings and chat completions
type Client struct {
	embeddings  EmbeddingAPI
	completions CompletionAPI
	model       string
	dimensions  int
}

type openAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func newOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *openAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &openAIAdapter{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings for a batch of
// texts, preserving input order.
func (a *openAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (a *openAIAdapter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return a.client.CreateChatCompletion(ctx, req)
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	CompletionModel     string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	model := cfg.CompletionModel
	if model == "" {
		model = DefaultCompletionModel
	}
	adapter := newOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel)
	return &Client{
		embeddings:  adapter,
		completions: adapter,
		model:       model,
		dimensions:  dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using the OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// GenerateEmbedding generates an embedding for the given text.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	out, err := c.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// GenerateEmbeddings generates embeddings for a batch of texts, preserving
// input order. Upstream failures are propagated, not retried at this layer.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		clean := SanitizeForEmbedding(t)
		if clean == "" {
			return nil, ErrEmptyText
		}
		prepared[i] = clean
	}

	embeddings, err := c.embeddings.CreateEmbeddings(ctx, prepared)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to create embeddings", err)
	}

	for _, e := range embeddings {
		if len(e) != c.dimensions {
			return nil, ErrWrongDimensions
		}
	}

	return embeddings, nil
}

// CompletionInput holds everything a chat completion call needs.
type CompletionInput struct {
	SystemPrompt string
	History      []domain.ConversationTurn
	UserMessage  string
	MaxTokens    int
	Temperature  float32
}

// Complete runs a chat completion with the given system prompt, conversation
// history and user message. Rate-limit, quota and network failures surface as
// upstream errors.
func (c *Client) Complete(ctx context.Context, input CompletionInput) (string, error) {
	if strings.TrimSpace(input.UserMessage) == "" {
		return "", ErrEmptyText
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2*len(input.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: input.SystemPrompt,
	})
	for _, turn := range input.History {
		messages = append(messages,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: turn.Message},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.Response},
		)
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: input.UserMessage,
	})

	resp, err := c.completions.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   input.MaxTokens,
		Temperature: input.Temperature,
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to create completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewDomainError(domain.ErrCodeUpstream, "completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// SanitizeForEmbedding applies the pre-embedding cleanup: collapses runs of
// five or more identical characters down to three, normalizes whitespace,
// drops tokens shorter than 2 or longer than 30 characters and truncates to
// the service's input ceiling. This is distinct from chunk-time cleaning.
func SanitizeForEmbedding(text string) string {
	collapsed := collapseCharRuns(text)

	fields := strings.Fields(collapsed)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		n := len([]rune(f))
		if n < 2 || n > 30 {
			continue
		}
		kept = append(kept, f)
	}

	out := strings.Join(kept, " ")
	runes := []rune(out)
	if len(runes) > maxEmbeddingInputChars {
		out = strings.TrimSpace(string(runes[:maxEmbeddingInputChars]))
	}
	return out
}

// collapseCharRuns truncates any run of 5+ identical characters to 3.
func collapseCharRuns(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && runes[j] == runes[i] {
			j++
		}
		run := j - i
		if run >= 5 {
			run = 3
		}
		for k := 0; k < run; k++ {
			b.WriteRune(runes[i])
		}
		i = j
	}
	return b.String()
}
