package openai

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for generation and summarization
	DefaultChatModel = "gpt-4o-mini"

	generationMaxTokens = 300
	summaryMaxTokens    = 80
)

// zeroTemperature is sent instead of 0, which the request struct omits as empty.
const zeroTemperature = math.SmallestNonzeroFloat32

const summarySystemPrompt = `You condense passages from medical documents. Summarize the passage in at most 40 words. Keep drug names, doses, conditions and findings exactly as written. Do not add information that is not in the passage.`

// ErrEmptyCompletion is returned when the API answers without choices.
var ErrEmptyCompletion = errors.New("no completion choices returned")

// ChatAPI is the subset of the go-openai client used for completions.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type ChatConfig struct {
	APIKey          string
	BaseURL         string
	GenerationModel string
	SummaryModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

// ChatClient wraps chat completions for answer generation and chunk summaries.
type ChatClient struct {
	api             ChatAPI
	generationModel string
	summaryModel    string
	maxRetries      int
	retryDelay      time.Duration
}

// NewChatClient requires an API key; without one generative mode is unavailable.
func NewChatClient(cfg ChatConfig) (*ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = DefaultChatModel
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.GenerationModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &ChatClient{
		api:             newAPIClient(cfg.APIKey, cfg.BaseURL),
		generationModel: cfg.GenerationModel,
		summaryModel:    cfg.SummaryModel,
		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelay,
	}, nil
}

// Generate sends prompt as a single user message and returns the reply.
func (c *ChatClient) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyText
	}
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.generationModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   generationMaxTokens,
		Temperature: zeroTemperature,
	})
}

// Summarize condenses one retrieved passage.
func (c *ChatClient) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		MaxTokens:   summaryMaxTokens,
		Temperature: zeroTemperature,
	})
}

func (c *ChatClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	return withRetry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) (string, error) {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyCompletion
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}
