package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	defaultMaxTokens   = 8192
	defaultTemperature = 0.2

	ProviderGemini  = "gemini"
	ProviderGroq    = "groq"
	ProviderGenAI   = "genai"
	ProviderBedrock = "bedrock"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the transport to a language model: messages in, text plus raw API body out.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, []byte, error)
}

type Options struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Region      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// NewClient выбирает реализацию клиента по имени провайдера.
func NewClient(ctx context.Context, opts Options) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderGemini:
		return NewGeminiClient(opts), nil
	case ProviderGroq:
		return NewGroqClient(opts), nil
	case ProviderGenAI:
		client, err := NewGenAIClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	case ProviderBedrock:
		client, err := NewBedrockClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", opts.Provider)
	}
}

func resolveMaxTokens(value int) int {
	if value > 0 {
		return value
	}

	return defaultMaxTokens
}

func resolveTemperature(value float64) float64 {
	if value > 0 {
		return value
	}

	return defaultTemperature
}

// splitMessages separates system instructions from the conversation turns.
func splitMessages(messages []Message) (system []string, turns []Message) {
	for _, message := range messages {
		text := strings.TrimSpace(message.Content)
		if text == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(message.Role)) {
		case "system":
			system = append(system, text)
		case "assistant", "model":
			turns = append(turns, Message{Role: "assistant", Content: text})
		default:
			turns = append(turns, Message{Role: "user", Content: text})
		}
	}
	return system, turns
}
