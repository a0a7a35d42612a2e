package assistant

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"

	"sysvox/internal/session"
)

// OpenAI adapts the OpenAI chat completion API to Completer.
type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAI(client openai.Client, model openai.ChatModel) *OpenAI {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAI{client: client, model: model}
}

func (o *OpenAI) Complete(ctx context.Context, system string, turns []session.Turn) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	msgs = append(msgs, openai.SystemMessage(system))
	for _, t := range turns {
		switch t.Role {
		case session.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:            msgs,
		Model:               o.model,
		Temperature:         openai.Float(0.7),
		MaxCompletionTokens: openai.Int(200),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("empty message content")
	}
	return content, nil
}
