package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MegaGrindStone/meet-assistant/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for interacting with Ollama's language models.
// It manages connections to an Ollama server instance and handles streaming chat completions. Frames
// attached to a prompt are sent as message images, so a vision capable model has to be configured
// for them to be understood.
type Ollama struct {
	host   string
	model  string
	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server.
func NewOllama(host, model string, params LLMParameters, logger *slog.Logger) (Ollama, error) {
	u, err := url.Parse(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("error parsing host: %w", err)
	}

	return Ollama{
		host:   host,
		model:  model,
		params: params,
		client: api.NewClient(u, &http.Client{}),
		logger: logger.With(slog.String("module", "ollama")),
	}, nil
}

func ollamaMessages(prompt models.Prompt) ([]api.Message, error) {
	msgs := make([]api.Message, 0, len(prompt.History)+2)
	msgs = append(msgs, api.Message{
		Role:    "system",
		Content: prompt.System,
	})
	for _, h := range prompt.History {
		msgs = append(msgs, api.Message{
			Role:    string(h.Role),
			Content: h.Content,
		})
	}

	user := api.Message{
		Role:    string(models.RoleUser),
		Content: prompt.Message,
	}
	if prompt.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(prompt.ImageBase64)
		if err != nil {
			return nil, fmt.Errorf("error decoding image: %w", err)
		}
		user.Images = []api.ImageData{img}
	}

	return append(msgs, user), nil
}

// Chat implements the LLM interface by streaming responses from the Ollama model. The returned iterator
// yields response chunks as they arrive and stops early when the consumer stops ranging.
func (o Ollama) Chat(ctx context.Context, prompt models.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs, err := ollamaMessages(prompt)
		if err != nil {
			yield("", err)
			return
		}

		t := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &t,
			Options:  o.params.ollamaOptions(),
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		}); err != nil {
			if stopped || errors.Is(err, context.Canceled) {
				return
			}
			o.logger.Error("Chat failed", slog.String(errLoggerKey, err.Error()))
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
