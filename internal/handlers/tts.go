package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MegaGrindStone/meet-assistant/internal/models"
	"github.com/MegaGrindStone/meet-assistant/internal/services"
)

const missingTTSKeyMessage = "ElevenLabs API key not configured. Set ELEVENLABS_API_KEY in your environment."

// HandleTTS serves the voice backend. GET lists the voices; POST synthesizes the JSON speech request and
// answers with MPEG audio.
func (a API) HandleTTS(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleVoices(w)
	case http.MethodPost:
		a.handleSynthesize(w, r)
	default:
		a.logger.Error("Method not allowed", slog.String("method", r.Method))
		writeJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a API) handleVoices(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(voicesResponse{
		Voices:       a.tts.Voices(),
		DefaultVoice: services.ElevenLabsDefaultVoice,
	})
}

func (a API) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if !a.tts.Configured() {
		writeJSONError(w, missingTTSKeyMessage, http.StatusInternalServerError)
		return
	}

	var req models.SpeechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.logger.Error("Failed to decode speech request", slog.String(errLoggerKey, err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		writeJSONError(w, "Text is required", http.StatusBadRequest)
		return
	}

	key := services.AudioKey(services.ElevenLabsVoiceID(req.VoiceID), req.Text)
	if a.cache != nil {
		audio, ok, err := a.cache.Audio(r.Context(), key)
		if err != nil {
			a.logger.Warn("Failed to read audio cache", slog.String(errLoggerKey, err.Error()))
		}
		if ok {
			writeAudio(w, audio)
			return
		}
	}

	body, err := a.tts.Synthesize(r.Context(), req.Text, req.VoiceID)
	if err != nil {
		a.writeSynthesisError(w, err)
		return
	}
	defer body.Close()

	audio, err := io.ReadAll(body)
	if err != nil {
		a.logger.Error("Failed to read synthesized audio", slog.String(errLoggerKey, err.Error()))
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if a.cache != nil {
		if err := a.cache.PutAudio(r.Context(), key, audio); err != nil {
			a.logger.Warn("Failed to write audio cache", slog.String(errLoggerKey, err.Error()))
		}
	}
	writeAudio(w, audio)
}

func (a API) writeSynthesisError(w http.ResponseWriter, err error) {
	a.logger.Error("Speech synthesis failed", slog.String(errLoggerKey, err.Error()))

	var synthErr *services.SynthesisError
	switch {
	case errors.As(err, &synthErr) && synthErr.StatusCode != 0:
		writeJSONError(w, fmt.Sprintf("ElevenLabs API error: %d", synthErr.StatusCode), synthErr.StatusCode)
	case errors.Is(err, services.ErrMissingAPIKey):
		writeJSONError(w, missingTTSKeyMessage, http.StatusInternalServerError)
	case errors.Is(err, services.ErrEmptyText):
		writeJSONError(w, "Text is required", http.StatusBadRequest)
	default:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeAudio(w http.ResponseWriter, audio []byte) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	_, _ = w.Write(audio)
}
