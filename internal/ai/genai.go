package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GenAIClient talks to Gemini through the official Go SDK.
type GenAIClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

// NewGenAIClient создает клиент Gemini на базе SDK generative-ai-go.
func NewGenAIClient(ctx context.Context, opts Options) (*GenAIClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("genai api key is missing")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIClient{
		client:      client,
		model:       opts.Model,
		maxTokens:   int32(resolveMaxTokens(opts.MaxTokens)),
		temperature: float32(resolveTemperature(opts.Temperature)),
	}, nil
}

// Chat отправляет историю сообщений в чат-сессию и возвращает последний ответ.
func (c *GenAIClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return "", nil, errors.New("genai request has no user content")
	}

	// a fresh model per call: SystemInstruction is per request
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	model.SetMaxOutputTokens(c.maxTokens)
	model.ResponseMIMEType = "application/json"
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	session := model.StartChat()
	for _, turn := range turns[:len(turns)-1] {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(turn.Content)}})
	}

	resp, err := session.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return "", nil, fmt.Errorf("genai generate: %w", err)
	}

	raw, _ := json.Marshal(resp)
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", raw, errors.New("genai response missing candidates")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		return "", raw, errors.New("genai response truncated by max tokens")
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	if builder.Len() == 0 {
		return "", raw, errors.New("genai response has no text parts")
	}

	return builder.String(), raw, nil
}

// Close освобождает gRPC-соединение SDK.
func (c *GenAIClient) Close() error {
	return c.client.Close()
}
