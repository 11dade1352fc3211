package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// fallbackLength is how much of a note is kept when no model is available.
const fallbackLength = 80

// ErrEmptyNote is returned when there is nothing to summarise.
var ErrEmptyNote = errors.New("note cannot be empty")

// Client wraps the OpenAI SDK for reminder note summaries.
type Client struct {
	client  *openai.Client
	model   openai.ChatModel
	timeout time.Duration
}

// New returns a Client. Without an apiKey it only truncates notes.
func New(apiKey string) *Client {
	if apiKey == "" {
		return &Client{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{
		client:  &client,
		model:   openai.ChatModelGPT4oMini,
		timeout: 15 * time.Second,
	}
}

// Enabled reports whether requests go to the API.
func (c *Client) Enabled() bool {
	return c != nil && c.client != nil
}

// SummarizeNote asks the model for a one-line summary of a reminder note.
func (c *Client) SummarizeNote(ctx context.Context, note string) (string, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return "", ErrEmptyNote
	}
	if !c.Enabled() {
		return truncate(note), nil
	}

	req := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String("You write one short sentence previewing an event reminder note for an email inbox."),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(fmt.Sprintf("Summarise this reminder note in one sentence: %s", note)),
					},
				},
			},
		},
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(60),
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion received")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func truncate(note string) string {
	runes := []rune(note)
	if len(runes) > fallbackLength {
		return string(runes[:fallbackLength]) + "..."
	}
	return note
}
