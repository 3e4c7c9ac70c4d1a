package llm

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
)

// AnthropicLLM adapts the Anthropic Messages API to rag.LLMService,
// selectable as an alternate provider alongside ChatGPTLLM.
type AnthropicLLM struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicLLM constructs the adapter.
func NewAnthropicLLM(apiKey, model string, maxTokens int64) *AnthropicLLM {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicLLM{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
	}
}

func (l *AnthropicLLM) GenerateAnswer(ctx context.Context, query, contextBlock string) (string, error) {
	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: contextBlock},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})
	if err != nil {
		return "", err
	}
	return joinText(msg), nil
}

func (l *AnthropicLLM) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	budget := l.maxTokens
	if maxTokens > 0 {
		budget = int64(maxTokens)
	}
	msg, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     l.model,
		MaxTokens: budget,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	return joinText(msg), nil
}

func joinText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// GenerateStream opens an Anthropic streaming request and translates its
// text-delta events into the domain-level token/done/error contract.
func (l *AnthropicLLM) GenerateStream(ctx context.Context, query, contextBlock string) (<-chan rag.StreamEvent, error) {
	stream := l.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     l.model,
		MaxTokens: l.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: contextBlock},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
		},
	})

	ch := make(chan rag.StreamEvent, 16)
	go func() {
		defer close(ch)
		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
				if text := delta.Delta.Text; text != "" {
					ch <- rag.StreamEvent{Type: rag.StreamEventToken, Token: text}
				}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- rag.StreamEvent{Type: rag.StreamEventError, Err: err}
			return
		}
		ch <- rag.StreamEvent{Type: rag.StreamEventDone}
	}()
	return ch, nil
}

var _ rag.LLMService = (*AnthropicLLM)(nil)
