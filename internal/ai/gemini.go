package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// GeminiClient calls the Generative Language REST API directly.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiConfig   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiConfig struct {
	Temperature      float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGeminiClient создает REST-клиент Gemini.
func NewGeminiClient(opts Options) *GeminiClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	return &GeminiClient{
		apiKey:      opts.APIKey,
		baseURL:     baseURL,
		model:       opts.Model,
		maxTokens:   resolveMaxTokens(opts.MaxTokens),
		temperature: resolveTemperature(opts.Temperature),
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Chat отправляет сообщения в Gemini и возвращает JSON-текст ответа и сырой ответ API.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", nil, errors.New("gemini api key is missing")
	}

	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return "", nil, errors.New("gemini request has no user content")
	}

	request := geminiRequest{
		GenerationConfig: &geminiConfig{
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxTokens,
			ResponseMimeType: "application/json",
		},
	}
	for _, turn := range turns {
		role := "user"
		if turn.Role == "assistant" {
			role = "model"
		}
		request.Contents = append(request.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: turn.Content}}})
	}
	if len(system) > 0 {
		request.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: strings.Join(system, "\n\n")}}}
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", nil, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	response, err := c.httpClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", nil, err
	}

	var parsed geminiResponse
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
			return "", body, fmt.Errorf("gemini api error: %s", parsed.Error.Message)
		}
		return "", body, fmt.Errorf("gemini api error: status %d", response.StatusCode)
	}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", body, err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", body, errors.New("gemini response missing content")
	}

	candidate := parsed.Candidates[0]
	if candidate.FinishReason == "MAX_TOKENS" {
		return "", body, errors.New("gemini response truncated by max tokens")
	}
	if parsed.UsageMetadata != nil {
		slog.Debug("gemini usage",
			slog.String("model", c.model),
			slog.Int("prompt_tokens", parsed.UsageMetadata.PromptTokenCount),
			slog.Int("output_tokens", parsed.UsageMetadata.CandidatesTokenCount),
		)
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		builder.WriteString(part.Text)
	}

	return builder.String(), body, nil
}
