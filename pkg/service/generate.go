package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/threadline/threadline/pkg/db"
	"github.com/threadline/threadline/pkg/models"
	"github.com/threadline/threadline/pkg/utils"
)

// GenerateOptions controls a single structured generation call.
type GenerateOptions struct {
	Temperature float32
	Model       string // optional model name override; empty = default model
}

// StructuredGenerator produces a JSON document matching the shape of out from
// a natural-language prompt. The prompt is expected to describe the desired
// JSON fields; implementations enforce JSON-only output and decode into out.
//
// Implementations must return ErrNoModelConfigured when no chat model is
// available, and an error wrapping ErrInvalidModelOutput when the model output
// could not be decoded after retries. The generator is passed explicitly into
// the services that need it; there is no global provider state.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, prompt string, out any, opts *GenerateOptions) (*db.TokenUsage, error)
}

// einoGenerator implements StructuredGenerator on top of the eino chat model
// abstraction, resolving model configs through the ModelService.
type einoGenerator struct {
	models     *ModelService
	logger     *slog.Logger
	maxRetries int
}

// NewStructuredGenerator creates the default eino-backed structured generator.
func NewStructuredGenerator(modelService *ModelService) StructuredGenerator {
	return &einoGenerator{
		models:     modelService,
		logger:     utils.GetLogger(),
		maxRetries: 2,
	}
}

func (g *einoGenerator) GenerateStructured(ctx context.Context, prompt string, out any, opts *GenerateOptions) (*db.TokenUsage, error) {
	if opts == nil {
		opts = &GenerateOptions{}
	}

	chatModel, err := g.resolveChatModel(ctx, opts.Model)
	if err != nil {
		return nil, err
	}

	fullPrompt := prompt + "\n\nOutput JSON only, no other text:"
	messages := []*schema.Message{schema.UserMessage(fullPrompt)}

	var genOpts []einoModel.Option
	if opts.Temperature > 0 {
		genOpts = append(genOpts, einoModel.WithTemperature(opts.Temperature))
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		resp, err := chatModel.Generate(ctx, messages, genOpts...)
		if err != nil {
			return nil, fmt.Errorf("LLM generation failed: %w", err)
		}

		if err := json.Unmarshal([]byte(extractJSON(resp.Content)), out); err != nil {
			lastErr = err
			g.logger.Warn("Failed to decode structured output, retrying",
				"attempt", attempt, "error", err)
			continue
		}

		return usageFromResponse(resp), nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrInvalidModelOutput, g.maxRetries+1, lastErr)
}

// resolveChatModel picks the model config (override or first configured) and
// builds an eino chat model from it.
func (g *einoGenerator) resolveChatModel(ctx context.Context, override string) (einoModel.ToolCallingChatModel, error) {
	var (
		config *models.ModelConfig
		err    error
	)
	if override != "" {
		config, err = g.models.GetModelConfig(override)
		if err != nil {
			return nil, fmt.Errorf("load model config: %w", err)
		}
		if config == nil {
			g.logger.Warn("Model override not found, falling back to default", "model", override)
		}
	}
	if config == nil {
		config, err = g.models.DefaultModelConfig()
		if err != nil {
			return nil, fmt.Errorf("load model config: %w", err)
		}
	}
	if config == nil {
		return nil, ErrNoModelConfigured
	}

	chatModel, err := g.models.CreateChatModel(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return chatModel, nil
}

// extractJSON strips prose around the first JSON object or array in content.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)

	objStart := strings.Index(content, "{")
	arrStart := strings.Index(content, "[")

	start := objStart
	closer := "}"
	if start < 0 || (arrStart >= 0 && arrStart < start) {
		start = arrStart
		closer = "]"
	}
	if start < 0 {
		return content
	}

	end := strings.LastIndex(content, closer)
	if end < start {
		return content
	}
	return content[start : end+1]
}

func usageFromResponse(resp *schema.Message) *db.TokenUsage {
	if resp == nil || resp.ResponseMeta == nil || resp.ResponseMeta.Usage == nil {
		return nil
	}
	u := resp.ResponseMeta.Usage
	return &db.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
