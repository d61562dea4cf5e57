// Package llm — клиент OpenAI-совместимого провайдера: текстовые эмбеддинги,
// генерация текста и описание изображений.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/DRSN-tech/fashion-search/internal/cfg"
	"github.com/DRSN-tech/fashion-search/internal/domain"
	"github.com/DRSN-tech/fashion-search/pkg/e"
	openai "github.com/sashabaranov/go-openai"
)

// Client делает ровно один вызов на операцию. Повторы и таймауты навешивает engine.
type Client struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
	chatModel      string
	visionModel    string
	dimensions     int
}

func NewClient(c *cfg.LLMCfg, dimensions int) *Client {
	clientCfg := openai.DefaultConfig(c.APIKey)
	clientCfg.BaseURL = c.BaseURL

	return &Client{
		client:         openai.NewClientWithConfig(clientCfg),
		embeddingModel: openai.EmbeddingModel(c.EmbeddingModel),
		chatModel:      c.ChatModel,
		visionModel:    c.VisionModel,
		dimensions:     dimensions,
	}
}

func (c *Client) EmbedText(ctx context.Context, text string) (domain.Vector, error) {
	const op = "Client.EmbedText"

	req := openai.EmbeddingRequest{
		Input:          []string{text},
		Model:          c.embeddingModel,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if c.dimensions > 0 {
		req.Dimensions = c.dimensions
	}

	resp, err := c.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, parseAPIError(err))
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyModelOutput)
	}

	return domain.Vector(resp.Data[0].Embedding), nil
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	const op = "Client.GenerateText"

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", e.Wrap(op, parseAPIError(err))
	}

	return firstChoice(op, resp)
}

// DescribeImage отправляет изображение в data URL вместе с инструкцией.
func (c *Client) DescribeImage(ctx context.Context, image []byte, mimeType, prompt string) (string, error) {
	const op = "Client.DescribeImage"

	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
	})
	if err != nil {
		return "", e.Wrap(op, parseAPIError(err))
	}

	return firstChoice(op, resp)
}

// AnalyzeProductImage описывает фото товара и извлекает из ответа поля карточки.
func (c *Client) AnalyzeProductImage(ctx context.Context, image []byte, mimeType string) (*domain.ProductDraft, error) {
	const op = "Client.AnalyzeProductImage"

	text, err := c.DescribeImage(ctx, image, mimeType, ProductAnalysisPrompt)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	fields, err := ParseFields(text)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return fields.Draft(), nil
}

func firstChoice(op string, resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", e.Wrap(op, e.ErrEmptyModelOutput)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", e.Wrap(op, e.ErrEmptyModelOutput)
	}

	return text, nil
}

// parseAPIError добавляет к ошибке код ответа провайдера, сохраняя исходную цепочку.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("llm API error %d: %w", reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("llm API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, err)
	}

	return fmt.Errorf("llm request failed: %w", err)
}
