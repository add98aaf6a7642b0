package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/utils"
)

// ImageDescriber is the inference collaborator that turns an image
// plus a prompt into natural-language text.
type ImageDescriber interface {
	DescribeImage(ctx context.Context, img []byte, req DescribeRequest) (*DescribeOutput, error)
}

type DescribeRequest struct {
	Prompt       string
	MaxNewTokens *int
	Temperature  *float64
}

// DescribeOutput reports the text the model produced along with the
// prompt actually sent, which may be the default when the request
// carried none.
type DescribeOutput struct {
	ModelName        string
	Prompt           string
	Description      string
	ProcessingTimeMs int64
}

const defaultDescribePrompt = "Describe this image in detail."

func effectiveDescribePrompt(raw string) string {
	prompt := strings.TrimSpace(raw)
	if prompt == "" {
		return defaultDescribePrompt
	}
	return prompt
}

type describeProviderService struct {
	log    *logger.Logger
	client *openai.Client
	model  string
}

func NewDescribeProviderService(log *logger.Logger) (ImageDescriber, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	serviceLog := log.With("service", "DescribeProviderService")

	apiKey := utils.GetEnv("OPENAI_API_KEY", "", serviceLog)
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	model := utils.GetEnv("OPENAI_VISION_MODEL", openai.GPT4oMini, serviceLog)

	config := openai.DefaultConfig(apiKey)
	if baseURL := utils.GetEnv("OPENAI_BASE_URL", "", serviceLog); baseURL != "" {
		config.BaseURL = baseURL
	}
	return &describeProviderService{
		log:    serviceLog,
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

func (s *describeProviderService) DescribeImage(ctx context.Context, img []byte, req DescribeRequest) (*DescribeOutput, error) {
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	prompt := effectiveDescribePrompt(req.Prompt)

	format := utils.DetectImageFormat(img)
	if format == "" {
		format = "jpeg"
	}
	dataURL := fmt.Sprintf("data:image/%s;base64,%s", format, base64.StdEncoding.EncodeToString(img))

	chatReq := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
	}
	if req.MaxNewTokens != nil && *req.MaxNewTokens > 0 {
		chatReq.MaxTokens = *req.MaxNewTokens
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}
	return &DescribeOutput{
		ModelName:        s.model,
		Prompt:           prompt,
		Description:      strings.TrimSpace(resp.Choices[0].Message.Content),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}
