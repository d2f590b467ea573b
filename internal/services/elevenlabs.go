package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// VoiceEntry is a named voice of the voice table.
type VoiceEntry struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// ElevenLabs synthesizes speech through the ElevenLabs text-to-speech API.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	model   string

	client *http.Client

	logger *slog.Logger
}

type elevenLabsRequest struct {
	Text          string                  `json:"text"`
	ModelID       string                  `json:"model_id"`
	VoiceSettings elevenLabsVoiceSettings `json:"voice_settings"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type elevenLabsErrorResponse struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

const (
	elevenLabsAPIEndpoint = "https://api.elevenlabs.io/v1"

	// ElevenLabsDefaultModel is the model used when none is configured.
	ElevenLabsDefaultModel = "eleven_monolingual_v1"
	// ElevenLabsDefaultVoice is the name of the voice used when a request names none.
	ElevenLabsDefaultVoice = "rachel"

	elevenLabsTimeout = 60 * time.Second
)

var elevenLabsVoices = map[string]string{
	"rachel":    "21m00Tcm4TlvDq8ikWAM",
	"drew":      "29vD33N1CtxCmqQRPOHJ",
	"clyde":     "2EiwWnXFnvU5JabPnv8n",
	"domi":      "AZnzlk1XvdvUeBnXmlld",
	"dave":      "CYw3kZ02Hs0563khs1Fj",
	"fin":       "D38z5RcWu1voky8WS1ja",
	"sarah":     "EXAVITQu4vr4xnSDxMaL",
	"antoni":    "ErXwobaYiN019PkySvjV",
	"thomas":    "GBv7mTt0atIp3Br8iCZE",
	"charlie":   "IKne3meq5aSn9XLyUdCD",
	"george":    "JBFqnCBsd6RMkjVDRZzb",
	"emily":     "LcfcDJNUP1GQjkzn1xUU",
	"elli":      "MF3mGyEYCl7XYWbV9V6O",
	"callum":    "N2lVS1w4EtoT3dr4eOWO",
	"patrick":   "ODq5zmih8GrVes37Dizd",
	"harry":     "SOYHLrjzK2X1ezoPC6cr",
	"liam":      "TX3LPaxmHKxFdv7VOQHJ",
	"dorothy":   "ThT5KcBeYPX3keUQqHPh",
	"josh":      "TxGEqnHWrfWFTfGW9XjX",
	"arnold":    "VR6AewLTigWG4xSOukaG",
	"charlotte": "XB0fDUnXU5powFXDhCwa",
	"matilda":   "XrExE9yKIg1WjnnlVkGX",
	"matthew":   "Yko7PKs4b1qGz229Oqxg",
	"james":     "ZQe5CZNOzWyzPSCn5a3c",
	"joseph":    "Zlb1dXrM653N07WRdFW3",
	"adam":      "pNInz6obpgDQGcFmaJgB",
	"sam":       "yoZ06aMxZJJ28mfd3POQ",
}

// NewElevenLabs creates an ElevenLabs client. An empty baseURL selects the public API and an empty model
// selects ElevenLabsDefaultModel.
func NewElevenLabs(apiKey, baseURL, model string, logger *slog.Logger) ElevenLabs {
	if baseURL == "" {
		baseURL = elevenLabsAPIEndpoint
	}
	if model == "" {
		model = ElevenLabsDefaultModel
	}
	return ElevenLabs{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: elevenLabsTimeout},
		logger:  logger.With(slog.String("module", "elevenlabs")),
	}
}

// Configured reports whether an API key is set.
func (e ElevenLabs) Configured() bool {
	return e.apiKey != ""
}

// Voices returns the voice table sorted by name.
func (e ElevenLabs) Voices() []VoiceEntry {
	voices := make([]VoiceEntry, 0, len(elevenLabsVoices))
	for name, id := range elevenLabsVoices {
		voices = append(voices, VoiceEntry{Name: name, ID: id})
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })
	return voices
}

// ElevenLabsVoiceID resolves voice to the ID sent upstream. Names from the voice table match regardless of
// case, an empty voice selects ElevenLabsDefaultVoice, and anything else is taken as an ID.
func ElevenLabsVoiceID(voice string) string {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		voice = ElevenLabsDefaultVoice
	}
	if id, ok := elevenLabsVoices[strings.ToLower(voice)]; ok {
		return id
	}
	return voice
}

// Synthesize converts text to MPEG audio. voice may be a voice ID or a name from the voice table, and
// falls back to ElevenLabsDefaultVoice when empty. The caller closes the returned body.
func (e ElevenLabs) Synthesize(ctx context.Context, text, voice string) (io.ReadCloser, error) {
	if e.apiKey == "" {
		return nil, &SynthesisError{Provider: "elevenlabs", Message: "not configured", Cause: ErrMissingAPIKey}
	}
	if text == "" {
		return nil, ErrEmptyText
	}

	voiceID := ElevenLabsVoiceID(voice)

	reqBody := elevenLabsRequest{
		Text:    text,
		ModelID: e.model,
		VoiceSettings: elevenLabsVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
			Style:           0,
			UseSpeakerBoost: true,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/text-to-speech/"+url.PathEscape(voiceID), bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &SynthesisError{Provider: "elevenlabs", Message: "request failed", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, e.handleError(resp)
	}

	return resp.Body, nil
}

func (e ElevenLabs) handleError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	e.logger.Error("ElevenLabs error",
		slog.Int("status", resp.StatusCode),
		slog.String("body", string(body)))

	var cause error
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	case http.StatusUnauthorized:
		cause = ErrMissingAPIKey
	case http.StatusNotFound:
		cause = ErrInvalidVoice
	}

	msg := fmt.Sprintf("ElevenLabs API error: %d", resp.StatusCode)
	var errResp elevenLabsErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Detail.Message != "" {
		msg = errResp.Detail.Message
	}

	return &SynthesisError{
		Provider:   "elevenlabs",
		StatusCode: resp.StatusCode,
		Message:    msg,
		Cause:      cause,
	}
}
