package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type converseAPI interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockClient uses the Bedrock Converse API with JSON-only instructions.
type BedrockClient struct {
	api         converseAPI
	modelID     string
	maxTokens   int32
	temperature float32
}

type bedrockRaw struct {
	StopReason   string `json:"stop_reason"`
	InputTokens  int32  `json:"input_tokens"`
	OutputTokens int32  `json:"output_tokens"`
	Text         string `json:"text"`
}

// NewBedrockClient загружает AWS-конфигурацию по умолчанию и создает клиент Bedrock.
func NewBedrockClient(ctx context.Context, opts Options) (*BedrockClient, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newBedrockClient(bedrockruntime.NewFromConfig(cfg), opts), nil
}

func newBedrockClient(api converseAPI, opts Options) *BedrockClient {
	return &BedrockClient{
		api:         api,
		modelID:     opts.Model,
		maxTokens:   int32(resolveMaxTokens(opts.MaxTokens)),
		temperature: float32(resolveTemperature(opts.Temperature)),
	}
}

// Chat вызывает Converse и возвращает текст ассистента.
func (c *BedrockClient) Chat(ctx context.Context, messages []Message) (string, []byte, error) {
	system, turns := splitMessages(messages)
	if len(turns) == 0 {
		return "", nil, errors.New("bedrock request has no user content")
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.maxTokens),
			Temperature: aws.Float32(c.temperature),
		},
	}
	for _, text := range system {
		input.System = append(input.System, &types.SystemContentBlockMemberText{Value: text})
	}
	for _, turn := range turns {
		role := types.ConversationRoleUser
		if turn.Role == "assistant" {
			role = types.ConversationRoleAssistant
		}
		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: turn.Content}},
		})
	}

	out, err := c.api.Converse(ctx, input)
	if err != nil {
		return "", nil, fmt.Errorf("bedrock converse: %w", err)
	}

	raw := bedrockRaw{StopReason: string(out.StopReason)}
	if out.Usage != nil {
		raw.InputTokens = aws.ToInt32(out.Usage.InputTokens)
		raw.OutputTokens = aws.ToInt32(out.Usage.OutputTokens)
	}

	text := converseText(out)
	raw.Text = text
	rawBody, _ := json.Marshal(raw)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		return "", rawBody, errors.New("bedrock response truncated by max tokens")
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("bedrock response blocked", slog.String("model", c.modelID))
		return "", rawBody, errors.New("bedrock response blocked by safety filters")
	}

	if strings.TrimSpace(text) == "" {
		return "", rawBody, errors.New("bedrock response missing text")
	}

	return text, rawBody, nil
}

func converseText(out *bedrockruntime.ConverseOutput) string {
	if out == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	var builder strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok && text != nil {
			builder.WriteString(text.Value)
		}
	}
	return builder.String()
}
