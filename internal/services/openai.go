package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/MegaGrindStone/meet-assistant/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface for OpenAI compatible chat completion APIs. It
// serves OpenAI itself and Groq, which exposes the same API under a different base URL.
type OpenAI struct {
	model       string
	visionModel string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

const (
	// GroqBaseURL is the OpenAI compatible endpoint of Groq.
	GroqBaseURL = "https://api.groq.com/openai/v1"
	// GroqDefaultModel is the model used for Groq when none is configured.
	GroqDefaultModel = "llama-3.3-70b-versatile"
)

// NewOpenAI creates a new OpenAI instance. An empty baseURL selects the OpenAI API. visionModel is used
// instead of model for prompts that carry an image; when empty, model is used for those too.
func NewOpenAI(apiKey, baseURL, model, visionModel string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if visionModel == "" {
		visionModel = model
	}

	return OpenAI{
		model:       model,
		visionModel: visionModel,
		params:      params,
		client:      goopenai.NewClientWithConfig(cfg),
		logger:      logger.With(slog.String("module", "openai")),
	}
}

func openAIMessages(prompt models.Prompt) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(prompt.History)+2)
	msgs = append(msgs, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleSystem,
		Content: prompt.System,
	})
	for _, h := range prompt.History {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(h.Role),
			Content: h.Content,
		})
	}

	if prompt.ImageBase64 == "" {
		return append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: prompt.Message,
		})
	}

	return append(msgs, goopenai.ChatCompletionMessage{
		Role: goopenai.ChatMessageRoleUser,
		MultiContent: []goopenai.ChatMessagePart{
			{
				Type: goopenai.ChatMessagePartTypeText,
				Text: prompt.Message,
			},
			{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL: imageDataURL(prompt.ImageBase64),
				},
			},
		},
	})
}

// Chat is a wrapper around the OpenAI chat completion streaming API.
func (o OpenAI) Chat(ctx context.Context, prompt models.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		model := o.model
		if prompt.ImageBase64 != "" {
			model = o.visionModel
		}
		req := o.chatRequest(model, openAIMessages(prompt))

		if o.logger.Enabled(ctx, slog.LevelDebug) {
			// The image would drown the log.
			logged := req
			logged.Messages = nil
			if reqJSON, err := json.Marshal(logged); err == nil {
				o.logger.Debug("Request",
					slog.String("req", string(reqJSON)),
					slog.Int("messages", len(req.Messages)),
					slog.Bool("image", prompt.ImageBase64 != ""))
			}
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			if text := response.Choices[0].Delta.Content; text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func (o OpenAI) chatRequest(model string, messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}
	if o.params.Stop != nil {
		req.Stop = o.params.Stop
	}
	if o.params.Seed != nil {
		req.Seed = o.params.Seed
	}

	return req
}
