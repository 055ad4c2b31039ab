package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GroqClient calls an OpenAI-compatible chat completions endpoint (Groq by default).
type GroqClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type groqChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type groqChatResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGroqClient создает клиент OpenAI-совместимого API.
func NewGroqClient(opts Options) *GroqClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}

	return &GroqClient{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		model:       opts.Model,
		maxTokens:   resolveMaxTokens(opts.MaxTokens),
		temperature: resolveTemperature(opts.Temperature),
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Chat отправляет сообщения и требует JSON-объект в ответе.
func (c *GroqClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", nil, errors.New("groq api key is missing")
	}

	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return "", nil, errors.New("groq request has no user content")
	}

	chat := make([]Message, 0, len(turns)+1)
	if len(system) > 0 {
		chat = append(chat, Message{Role: "system", Content: strings.Join(system, "\n\n")})
	}
	chat = append(chat, turns...)

	payload, err := json.Marshal(groqChatRequest{
		Model:          c.model,
		Messages:       chat,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", nil, err
	}

	var parsed groqChatResponse
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
			return "", body, fmt.Errorf("groq api error: %s", parsed.Error.Message)
		}
		return "", body, fmt.Errorf("groq api error: status %d", response.StatusCode)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, err
	}
	if len(parsed.Choices) == 0 {
		return "", body, errors.New("groq response missing choices")
	}
	if parsed.Choices[0].FinishReason == "length" {
		return "", body, errors.New("groq response truncated by max tokens")
	}

	return parsed.Choices[0].Message.Content, body, nil
}
