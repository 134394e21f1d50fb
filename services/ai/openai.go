package aisvc

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkg/errors"

	"github.com/redinnovafp/backend/core"
)

var ErrNoChoices = errors.New("the completion returned no choices")

type openAIService struct {
	apiKey  string
	model   string
	baseURL string
}

var _ core.Completer = (*openAIService)(nil)

func NewOpenAIService(conf *core.Config) core.Completer {
	return &openAIService{
		apiKey:  conf.OpenAI.APIKey,
		model:   conf.OpenAI.Model,
		baseURL: conf.OpenAI.BaseURL,
	}
}

// Complete runs a chat completion. c.APIKey overrides the configured key.
func (svc openAIService) Complete(ctx context.Context, c core.Completion) (string, error) {
	key := c.APIKey
	if key == "" {
		key = svc.apiKey
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if svc.baseURL != "" {
		opts = append(opts, option.WithBaseURL(svc.baseURL))
	}
	client := openai.NewClient(opts...)

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if c.System != "" {
		messages = append(messages, openai.SystemMessage(c.System))
	}
	messages = append(messages, openai.UserMessage(c.User))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(svc.model),
		Messages: messages,
	})
	if err != nil {
		return "", errors.Wrap(err, "requesting chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleterMock returns canned answers & records the completions it receives.
type CompleterMock struct {
	Content     string
	Err         error
	Completions []core.Completion
}

var _ core.Completer = (*CompleterMock)(nil)

func (m *CompleterMock) Complete(_ context.Context, c core.Completion) (string, error) {
	m.Completions = append(m.Completions, c)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Content, nil
}
