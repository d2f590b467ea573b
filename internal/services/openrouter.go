package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/meet-assistant/internal/models"
	"github.com/tmaxmax/go-sse"
)

// OpenRouter provides an implementation of the LLM interface for interacting with OpenRouter's language models.
type OpenRouter struct {
	apiKey   string
	model    string
	endpoint string
	params   LLMParameters

	client *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature *float32            `json:"temperature,omitempty"`
	TopP        *float32            `json:"top_p,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Stop        []string            `json:"stop,omitempty"`
	Seed        *int                `json:"seed,omitempty"`
}

// openRouterMessage content is either a string or a list of openRouterContentPart.
type openRouterMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openRouterContentPart struct {
	Type     string              `json:"type"`
	Text     string              `json:"text,omitempty"`
	ImageURL *openRouterImageURL `json:"image_url,omitempty"`
}

type openRouterImageURL struct {
	URL string `json:"url"`
}

type openRouterStreamingResponse struct {
	Choices []openRouterStreamingChoice `json:"choices"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openRouterStreamingChoice struct {
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

const (
	openRouterAPIEndpoint = "https://openrouter.ai/api/v1"
)

// NewOpenRouter creates a new OpenRouter instance with the specified API key and model name. An empty
// endpoint selects the public API.
func NewOpenRouter(apiKey, model, endpoint string, params LLMParameters, logger *slog.Logger) OpenRouter {
	if endpoint == "" {
		endpoint = openRouterAPIEndpoint
	}
	return OpenRouter{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		params:   params,
		client:   &http.Client{},
		logger:   logger.With(slog.String("module", "openrouter")),
	}
}

// Chat streams responses from the OpenRouter API. The returned iterator yields response chunks and
// potential errors. The context can be used to cancel ongoing requests.
func (o OpenRouter) Chat(ctx context.Context, prompt models.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		resp, err := o.doRequest(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}

			if ev.Data == "[DONE]" {
				return
			}
			if ev.Data == "" {
				continue
			}

			var res openRouterStreamingResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				yield("", fmt.Errorf("error unmarshaling response: %w", err))
				return
			}
			if res.Error != nil {
				yield("", fmt.Errorf("openrouter error %d: %s", res.Error.Code, res.Error.Message))
				return
			}

			if len(res.Choices) == 0 {
				continue
			}

			if text := res.Choices[0].Delta.Content; text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func openRouterMessages(prompt models.Prompt) []openRouterMessage {
	msgs := make([]openRouterMessage, 0, len(prompt.History)+2)
	msgs = append(msgs, openRouterMessage{
		Role:    "system",
		Content: prompt.System,
	})
	for _, h := range prompt.History {
		if h.Content == "" {
			continue
		}
		msgs = append(msgs, openRouterMessage{
			Role:    string(h.Role),
			Content: h.Content,
		})
	}

	var content any = prompt.Message
	if prompt.ImageBase64 != "" {
		content = []openRouterContentPart{
			{Type: "text", Text: prompt.Message},
			{Type: "image_url", ImageURL: &openRouterImageURL{URL: imageDataURL(prompt.ImageBase64)}},
		}
	}
	return append(msgs, openRouterMessage{
		Role:    string(models.RoleUser),
		Content: content,
	})
}

func (o OpenRouter) doRequest(ctx context.Context, prompt models.Prompt) (*http.Response, error) {
	reqBody := openRouterChatRequest{
		Model:       o.model,
		Messages:    openRouterMessages(prompt),
		Stream:      true,
		Temperature: o.params.Temperature,
		TopP:        o.params.TopP,
		MaxTokens:   o.params.MaxTokens,
		Stop:        o.params.Stop,
		Seed:        o.params.Seed,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Request",
		slog.String("model", o.model),
		slog.Int("messages", len(reqBody.Messages)),
		slog.Bool("image", prompt.ImageBase64 != ""))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.endpoint+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/MegaGrindStone/meet-assistant/")
	req.Header.Set("X-Title", "Meet Assistant")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}
