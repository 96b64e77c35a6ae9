package openai

import (
	"context"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChatAPI struct {
	mock.Mock
}

func (m *MockChatAPI) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}},
		},
	}
}

func newTestChatClient(api ChatAPI) *ChatClient {
	return &ChatClient{
		api:             api,
		generationModel: "gpt-4o-mini",
		summaryModel:    "gpt-4o-mini",
		maxRetries:      1,
		retryDelay:      time.Millisecond,
	}
}

func TestChatClient_Generate(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newTestChatClient(mockAPI)

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Model == "gpt-4o-mini" &&
			req.MaxTokens == 300 &&
			len(req.Messages) == 1 &&
			req.Messages[0].Role == openai.ChatMessageRoleUser &&
			req.Messages[0].Content == "prompt text"
	})).Return(completion("  Metformin.  "), nil)

	answer, err := client.Generate(context.Background(), "prompt text")

	require.NoError(t, err)
	assert.Equal(t, "Metformin.", answer)
	mockAPI.AssertExpectations(t)
}

func TestChatClient_Summarize(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newTestChatClient(mockAPI)

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return len(req.Messages) == 2 &&
			req.Messages[0].Role == openai.ChatMessageRoleSystem &&
			req.Messages[1].Content == "long passage"
	})).Return(completion("short summary"), nil)

	summary, err := client.Summarize(context.Background(), "long passage")

	require.NoError(t, err)
	assert.Equal(t, "short summary", summary)
}

func TestChatClient_EmptyChoices(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newTestChatClient(mockAPI)

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).Return(openai.ChatCompletionResponse{}, nil)

	_, err := client.Generate(context.Background(), "prompt")

	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestChatClient_UnauthorizedIsFinal(t *testing.T) {
	mockAPI := new(MockChatAPI)
	client := newTestChatClient(mockAPI)

	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "bad key"})

	_, err := client.Generate(context.Background(), "prompt")

	require.Error(t, err)
	mockAPI.AssertNumberOfCalls(t, "CreateChatCompletion", 1)
}

func TestChatClient_EmptyPrompt(t *testing.T) {
	client := newTestChatClient(new(MockChatAPI))

	_, err := client.Generate(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)

	_, err = client.Summarize(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNewChatClient_RequiresKey(t *testing.T) {
	client, err := NewChatClient(ChatConfig{})

	assert.Nil(t, client)
	assert.Equal(t, ErrNoAPIKey, err)
}

func TestNewChatClient_Defaults(t *testing.T) {
	client, err := NewChatClient(ChatConfig{APIKey: "sk-test"})

	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, client.generationModel)
	assert.Equal(t, DefaultChatModel, client.summaryModel)
}
