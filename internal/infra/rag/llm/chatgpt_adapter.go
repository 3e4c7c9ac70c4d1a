// Package llm provides concrete rag.LLMService implementations: an
// OpenAI-compatible provider (kept from the teacher's ChatGPTLLM/EchoLLM
// adapter), an Anthropic provider, and the EchoLLM fallback used when no
// provider is configured.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/saintwyss/rag-corp-sub003/internal/domain/rag"
	"github.com/saintwyss/rag-corp-sub003/internal/infra/llm/chatgpt"
)

const systemPromptRole = "system"

// ChatGPTLLM adapts the ChatGPT client to rag.LLMService.
type ChatGPTLLM struct {
	client      *chatgpt.Client
	model       string
	temperature float32
}

// NewChatGPTLLM constructs the adapter.
func NewChatGPTLLM(client *chatgpt.Client, model string, temperature float32) *ChatGPTLLM {
	return &ChatGPTLLM{client: client, model: model, temperature: temperature}
}

func (l *ChatGPTLLM) GenerateAnswer(ctx context.Context, query, contextBlock string) (string, error) {
	messages := []chatgpt.Message{
		{Role: systemPromptRole, Content: contextBlock},
		{Role: "user", Content: query},
	}
	return l.chat(ctx, messages)
}

func (l *ChatGPTLLM) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	_ = maxTokens
	return l.chat(ctx, []chatgpt.Message{{Role: "user", Content: prompt}})
}

func (l *ChatGPTLLM) chat(ctx context.Context, messages []chatgpt.Message) (string, error) {
	resp, err := l.client.CreateChatCompletion(ctx, chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateStream opens a ChatGPT streaming completion and translates its
// SSE delta frames into token events, ending with a done or error event.
// It emits no sources event; ask.Service emits that before forwarding
// these events.
func (l *ChatGPTLLM) GenerateStream(ctx context.Context, query, contextBlock string) (<-chan rag.StreamEvent, error) {
	messages := []chatgpt.Message{
		{Role: systemPromptRole, Content: contextBlock},
		{Role: "user", Content: query},
	}
	stream, err := l.client.CreateChatCompletionStream(ctx, chatgpt.ChatCompletionRequest{
		Model:       l.model,
		Temperature: l.temperature,
		Messages:    messages,
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan rag.StreamEvent, 16)
	go func() {
		defer close(ch)
		for {
			chunk, recvErr := stream.Recv()
			if recvErr != nil {
				if errors.Is(recvErr, io.EOF) {
					ch <- rag.StreamEvent{Type: rag.StreamEventDone}
					return
				}
				ch <- rag.StreamEvent{Type: rag.StreamEventError, Err: recvErr}
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta != "" {
				ch <- rag.StreamEvent{Type: rag.StreamEventToken, Token: delta}
			}
			if chunk.Choices[0].FinishReason != "" {
				ch <- rag.StreamEvent{Type: rag.StreamEventDone}
				return
			}
		}
	}()
	return ch, nil
}

var _ rag.LLMService = (*ChatGPTLLM)(nil)

// EchoLLM returns a lightweight fallback without external calls, used when
// no LLM provider is configured.
type EchoLLM struct{}

func (EchoLLM) GenerateAnswer(_ context.Context, query, _ string) (string, error) {
	return "Answer: " + query, nil
}

func (EchoLLM) GenerateText(_ context.Context, prompt string, _ int) (string, error) {
	return prompt, nil
}

func (EchoLLM) GenerateStream(_ context.Context, query, _ string) (<-chan rag.StreamEvent, error) {
	ch := make(chan rag.StreamEvent, 2)
	ch <- rag.StreamEvent{Type: rag.StreamEventToken, Token: fmt.Sprintf("Answer: %s", query)}
	ch <- rag.StreamEvent{Type: rag.StreamEventDone}
	close(ch)
	return ch, nil
}

var _ rag.LLMService = (*EchoLLM)(nil)
