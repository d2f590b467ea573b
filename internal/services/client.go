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
	"strings"
	"unicode/utf8"

	"github.com/MegaGrindStone/meet-assistant/internal/models"
)

// ChatClient calls the chat backend and exposes its incremental text body as a sequence of fragments.
type ChatClient struct {
	endpoint string

	client *http.Client

	logger *slog.Logger
}

// VoiceClient calls the voice synthesis backend.
type VoiceClient struct {
	endpoint string
	voiceID  string

	client *http.Client

	logger *slog.Logger
}

const streamReadSize = 4096

// NewChatClient creates a ChatClient posting to endpoint, the full URL of the chat route. A nil client
// selects http.DefaultClient.
func NewChatClient(endpoint string, client *http.Client, logger *slog.Logger) ChatClient {
	if client == nil {
		client = http.DefaultClient
	}
	return ChatClient{
		endpoint: endpoint,
		client:   client,
		logger:   logger.With(slog.String("module", "chat-client")),
	}
}

// Stream sends req and returns the response body as fragments, in the order they arrive. A fragment
// never splits a multi-byte character. Stream itself fails when the request cannot be sent or the
// backend answers with a non-2xx status; errors after the first byte are delivered through the
// sequence, which then ends. The caller must drain or break out of the sequence to release the
// connection.
func (c ChatClient) Stream(ctx context.Context, req models.ChatRequest) (iter.Seq2[string, error], error) {
	resp, err := postJSON(ctx, c.client, c.endpoint, req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Chat response", slog.Int("status", resp.StatusCode))

	return func(yield func(string, error) bool) {
		defer resp.Body.Close()

		buf := make([]byte, streamReadSize)
		var pending []byte
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				pending = append(pending, buf[:n]...)
				complete, rest := splitUTF8(pending)
				if len(complete) > 0 {
					if !yield(string(complete), nil) {
						return
					}
				}
				pending = append(pending[:0], rest...)
			}
			if err != nil {
				if len(pending) > 0 {
					if !yield(strings.ToValidUTF8(string(pending), "�"), nil) {
						return
					}
				}
				if !errors.Is(err, io.EOF) {
					yield("", fmt.Errorf("error reading response: %w", err))
				}
				return
			}
		}
	}, nil
}

// NewVoiceClient creates a VoiceClient posting to endpoint, the full URL of the voice route. voiceID is
// sent with every request and may be empty. A nil client selects http.DefaultClient.
func NewVoiceClient(endpoint, voiceID string, client *http.Client, logger *slog.Logger) VoiceClient {
	if client == nil {
		client = http.DefaultClient
	}
	return VoiceClient{
		endpoint: endpoint,
		voiceID:  voiceID,
		client:   client,
		logger:   logger.With(slog.String("module", "voice-client")),
	}
}

// Synthesize returns the encoded audio for text. Any non-2xx answer is an error.
func (v VoiceClient) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := postJSON(ctx, v.client, v.endpoint, models.SpeechRequest{
		Text:    text,
		VoiceID: v.voiceID,
	})
	if err != nil {
		return nil, err
	}

	v.logger.Debug("Voice response",
		slog.Int("status", resp.StatusCode),
		slog.String("contentType", resp.Header.Get("Content-Type")))

	return resp.Body, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, body any) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			apiErr.Message = errResp.Error
		}
		return nil, apiErr
	}

	return resp, nil
}

// splitUTF8 separates a trailing incomplete multi-byte character from the rest of b.
func splitUTF8(b []byte) ([]byte, []byte) {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i], b[i:]
		}
		break
	}
	return b, nil
}
