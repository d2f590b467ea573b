package handlers

import (
	"context"
	"encoding/json"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/MegaGrindStone/meet-assistant/internal/models"
	"github.com/MegaGrindStone/meet-assistant/internal/services"
)

// LLM represents a large language model interface that provides chat functionality. It accepts a context
// and a prompt, returning an iterator that yields response chunks and potential errors.
type LLM interface {
	Chat(ctx context.Context, prompt models.Prompt) iter.Seq2[string, error]
}

// TTS synthesizes speech for the voice route.
type TTS interface {
	Configured() bool
	Voices() []services.VoiceEntry
	Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error)
}

// AudioCache stores synthesized audio between requests.
type AudioCache interface {
	Audio(ctx context.Context, key string) ([]byte, bool, error)
	PutAudio(ctx context.Context, key string, audio []byte) error
}

// API serves the chat and voice backends used by the panel.
type API struct {
	llm   LLM
	tts   TTS
	cache AudioCache

	logger *slog.Logger
}

type voicesResponse struct {
	Voices       []services.VoiceEntry `json:"voices"`
	DefaultVoice string                `json:"defaultVoice"`
}

// NewAPI creates the backend handlers. llm is nil when no chat provider could be configured, in which
// case chat requests fail with 500. cache may be nil.
func NewAPI(llm LLM, tts TTS, cache AudioCache, logger *slog.Logger) API {
	return API{
		llm:    llm,
		tts:    tts,
		cache:  cache,
		logger: logger.With(slog.String("module", "api")),
	}
}

// HandleChat answers a chat request with the reply streamed as plain UTF-8 text, each fragment flushed
// as soon as the provider produces it.
//
// The request body is a JSON chat request; message and agentInstructions are required. Validation
// failures answer 400 and a provider failing before its first fragment answers 500, both with a JSON
// error body. A provider failing later ends the body early.
func (a API) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.logger.Error("Method not allowed", slog.String("method", r.Method))
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Error("Failed to decode chat request", slog.String(errLoggerKey, err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		writeJSONError(w, "Message is required", http.StatusBadRequest)
		return
	}
	if req.AgentInstructions == "" {
		writeJSONError(w, "Agent instructions are required", http.StatusBadRequest)
		return
	}
	if a.llm == nil {
		writeJSONError(w, "Chat provider is not configured", http.StatusInternalServerError)
		return
	}

	prompt := models.Prompt{
		System:      req.AgentInstructions,
		History:     req.ChatHistory,
		Message:     req.Message,
		ImageBase64: req.ImageBase64,
	}

	next, stop := iter.Pull2(a.llm.Chat(r.Context(), prompt))
	defer stop()

	// The status is only committed once the provider has answered.
	chunk, err, ok := next()
	if ok && err != nil {
		a.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for ; ok; chunk, err, ok = next() {
		if err != nil {
			a.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			return
		}
		if chunk == "" {
			continue
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			a.logger.Debug("Client went away", slog.String(errLoggerKey, err.Error()))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: msg})
}
