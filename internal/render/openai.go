package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const systemPrompt = "You are a financial data analyst who explains payment transaction statistics."

// OpenAICompleter calls an OpenAI chat model.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a client for apiKey.
func NewOpenAICompleter(apiKey, model string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("NewOpenAICompleter: OPENAI_API_KEY is not set")
	}
	return NewOpenAICompleterWithClient(openai.NewClient(apiKey), model), nil
}

// NewOpenAICompleterWithClient uses an existing client.
func NewOpenAICompleterWithClient(client *openai.Client, model string) *OpenAICompleter {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAICompleter{client: client, model: model}
}

// Complete implements Completer.
func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("Complete: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("Complete: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ Completer = (*OpenAICompleter)(nil)
