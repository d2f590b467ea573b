package handlers_test

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
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MegaGrindStone/meet-assistant/internal/chat"
	"github.com/MegaGrindStone/meet-assistant/internal/handlers"
	"github.com/MegaGrindStone/meet-assistant/internal/models"
	"github.com/MegaGrindStone/meet-assistant/internal/render"
	"github.com/MegaGrindStone/meet-assistant/internal/services"
	"github.com/tmaxmax/go-sse"
)

type mockLLM struct {
	responses []string
	err       error
	midErr    error

	mu     sync.Mutex
	prompt models.Prompt
}

type mockConversation struct {
	mu        sync.Mutex
	snapshot  chat.Snapshot
	sent      []string
	vision    []bool
	autoSpeak []bool
	toggles   int
	stops     int
	input     string
	subs      []func(chat.Snapshot)
	warnings  []func(string)
}

type mockTTS struct {
	configured bool
	audio      string
	err        error
	calls      int
}

type mockCache struct {
	entries map[string][]byte
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPanel(t *testing.T, conv *mockConversation) *handlers.Panel {
	t.Helper()
	panel, err := handlers.NewPanel(conv, render.NewMarkdown(""), discardLogger())
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}
	t.Cleanup(func() { _ = panel.Shutdown(context.Background()) })
	return panel
}

func TestNewPanel(t *testing.T) {
	conv := &mockConversation{}

	panel, err := handlers.NewPanel(conv, render.NewMarkdown(""), discardLogger())
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}

	if len(conv.subs) != 1 || len(conv.warnings) != 1 {
		t.Errorf("NewPanel() subscriptions = %d, %d, want 1, 1", len(conv.subs), len(conv.warnings))
	}

	// Publishing without clients must not block.
	conv.publish()
	conv.warn("Could not capture frame")

	if panel.Shutdown(context.Background()) != nil {
		t.Error("Shutdown() should not return error")
	}
}

func TestHandleHome(t *testing.T) {
	conv := &mockConversation{
		snapshot: chat.Snapshot{
			AgentName: "Ada",
			Messages: []models.Message{
				{ID: "1", Role: models.RoleUser, Content: "<b>hi</b>", HasImage: true, Timestamp: time.Now()},
				{ID: "2", Role: models.RoleAssistant, Content: "Hello **there**", Timestamp: time.Now()},
			},
			Presence: models.PresenceIdle,
		},
	}
	panel := newTestPanel(t, conv)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "Home page",
			url:        "/",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Ada", "Online", "&lt;b&gt;hi&lt;/b&gt;", "<strong>there</strong>", "message-assistant"},
		},
		{
			name:       "Unknown page",
			url:        "/missing",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			panel.HandleHome(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleHome() status = %v, want %v", w.Code, tt.wantStatus)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(w.Body.String(), want) {
					t.Errorf("HandleHome() body = %v, want to contain %v", w.Body.String(), want)
				}
			}
		})
	}
}

func TestHandleSend(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		message    string
		loading    bool
		wantStatus int
		wantSent   bool
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			message:    "  ",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Turn in flight",
			method:     http.MethodPost,
			message:    "Hello",
			loading:    true,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "Accepted",
			method:     http.MethodPost,
			message:    "Hello",
			wantStatus: http.StatusAccepted,
			wantSent:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := &mockConversation{snapshot: chat.Snapshot{Loading: tt.loading}}
			panel := newTestPanel(t, conv)

			req := httptest.NewRequest(tt.method, "/send", strings.NewReader("message="+tt.message))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			panel.HandleSend(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleSend() status = %v, want %v", w.Code, tt.wantStatus)
			}
			got := conv.sentMessages()
			if !tt.wantSent {
				if len(got) != 0 {
					t.Errorf("HandleSend() sent = %v, want none", got)
				}
				return
			}
			if len(got) != 1 || got[0] != tt.message {
				t.Errorf("HandleSend() sent = %v, want [%v]", got, tt.message)
			}
		})
	}
}

func TestHandleSendConcurrentPosts(t *testing.T) {
	conv := &mockConversation{}
	panel := newTestPanel(t, conv)

	const posts = 8
	codes := make(chan int, posts)
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/send", strings.NewReader("message=Hello"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()
			panel.HandleSend(w, req)
			codes <- w.Code
		}()
	}
	wg.Wait()
	close(codes)

	accepted, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("HandleSend() status = %v, want %v or %v", code, http.StatusAccepted, http.StatusConflict)
		}
	}
	if accepted != 1 || conflicts != posts-1 {
		t.Errorf("HandleSend() accepted = %d, conflicts = %d, want 1 and %d", accepted, conflicts, posts-1)
	}
	if got := conv.sentMessages(); len(got) != 1 {
		t.Errorf("HandleSend() sent = %v, want exactly one message", got)
	}
}

func TestPanelFeedDropsStaleSnapshots(t *testing.T) {
	conv := &mockConversation{}
	panel := newTestPanel(t, conv)

	srv := httptest.NewServer(http.HandlerFunc(panel.HandleSSE))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET feed error = %v", err)
	}
	defer resp.Body.Close()

	inputs := make(chan string, 64)
	go func() {
		defer close(inputs)
		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				return
			}
			if ev.Type != "state" {
				continue
			}
			var st struct {
				Input string `json:"input"`
			}
			if json.Unmarshal([]byte(ev.Data), &st) == nil {
				inputs <- st.Input
			}
		}
	}()

	// The feed subscribes asynchronously; publish until the client sees an event.
	var seq uint64
	primed := false
	for attempt := 0; attempt < 100 && !primed; attempt++ {
		seq++
		conv.publishSnapshot(chat.Snapshot{Seq: seq, Input: fmt.Sprintf("prime %d", seq)})
		select {
		case <-inputs:
			primed = true
		case <-time.After(20 * time.Millisecond):
		}
	}
	if !primed {
		t.Fatal("feed never delivered a state event")
	}

	conv.publishSnapshot(chat.Snapshot{Seq: seq + 2, Input: "newer"})
	conv.publishSnapshot(chat.Snapshot{Seq: seq + 1, Input: "older"})
	conv.publishSnapshot(chat.Snapshot{Seq: seq + 3, Input: "final"})

	var got []string
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case in, ok := <-inputs:
			if !ok {
				t.Fatal("feed closed early")
			}
			if strings.HasPrefix(in, "prime") {
				continue
			}
			got = append(got, in)
			done = in == "final"
		case <-timeout:
			t.Fatalf("feed state inputs = %v, want final", got)
		}
	}

	if want := []string{"newer", "final"}; !slices.Equal(got, want) {
		t.Errorf("feed state inputs = %v, want %v", got, want)
	}
}

func TestHandleToggles(t *testing.T) {
	conv := &mockConversation{}
	panel := newTestPanel(t, conv)

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		body       string
		wantStatus int
	}{
		{name: "Vision on", handler: panel.HandleVision, body: "on=true", wantStatus: http.StatusNoContent},
		{name: "Vision bad value", handler: panel.HandleVision, body: "on=maybe", wantStatus: http.StatusBadRequest},
		{name: "Auto speak off", handler: panel.HandleAutoSpeak, body: "on=false", wantStatus: http.StatusNoContent},
		{name: "Listen", handler: panel.HandleListen, wantStatus: http.StatusNoContent},
		{name: "Stop speaking", handler: panel.HandleStopSpeaking, wantStatus: http.StatusNoContent},
		{name: "Draft", handler: panel.HandleInput, body: "message=draft", wantStatus: http.StatusNoContent},
		{name: "Quick action", handler: panel.HandleQuickAction, body: "action=see", wantStatus: http.StatusNoContent},
		{name: "Unknown quick action", handler: panel.HandleQuickAction, body: "action=dance", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			tt.handler(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()
	if len(conv.vision) != 1 || !conv.vision[0] {
		t.Errorf("SetVision() calls = %v, want [true]", conv.vision)
	}
	if len(conv.autoSpeak) != 1 || conv.autoSpeak[0] {
		t.Errorf("SetAutoSpeak() calls = %v, want [false]", conv.autoSpeak)
	}
	if conv.toggles != 1 || conv.stops != 1 {
		t.Errorf("ToggleListening() = %d, StopSpeaking() = %d, want 1, 1", conv.toggles, conv.stops)
	}
	if conv.input != "draft" {
		t.Errorf("SetInput() = %q, want %q", conv.input, "draft")
	}
}

func TestHandleChat(t *testing.T) {
	validBody := `{"message":"Hi","agentInstructions":"Be kind.","chatHistory":[{"role":"user","content":"Yo"}]}`

	tests := []struct {
		name            string
		method          string
		body            string
		llm             handlers.LLM
		wantStatus      int
		wantBody        string
		wantContentType string
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			llm:        &mockLLM{},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Invalid body",
			method:     http.MethodPost,
			body:       "{",
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Missing message",
			method:     http.MethodPost,
			body:       `{"agentInstructions":"Be kind."}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Message is required"}`,
		},
		{
			name:       "Missing instructions",
			method:     http.MethodPost,
			body:       `{"message":"Hi"}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Agent instructions are required"}`,
		},
		{
			name:       "No provider",
			method:     http.MethodPost,
			body:       validBody,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "Provider error",
			method:     http.MethodPost,
			body:       validBody,
			llm:        &mockLLM{err: errors.New("invalid api key")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"invalid api key"}`,
		},
		{
			name:            "Streamed reply",
			method:          http.MethodPost,
			body:            validBody,
			llm:             &mockLLM{responses: []string{"Hello", "", " world"}},
			wantStatus:      http.StatusOK,
			wantBody:        "Hello world",
			wantContentType: "text/plain; charset=utf-8",
		},
		{
			name:       "Interrupted reply",
			method:     http.MethodPost,
			body:       validBody,
			llm:        &mockLLM{responses: []string{"Hel"}, midErr: errors.New("connection reset")},
			wantStatus: http.StatusOK,
			wantBody:   "Hel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := handlers.NewAPI(tt.llm, &mockTTS{}, nil, discardLogger())

			req := httptest.NewRequest(tt.method, "/api/ai/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			api.HandleChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChat() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && strings.TrimSpace(w.Body.String()) != tt.wantBody {
				t.Errorf("HandleChat() body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantContentType != "" && w.Header().Get("Content-Type") != tt.wantContentType {
				t.Errorf("HandleChat() content type = %q, want %q", w.Header().Get("Content-Type"), tt.wantContentType)
			}
		})
	}
}

func TestHandleChatPrompt(t *testing.T) {
	llm := &mockLLM{responses: []string{"ok"}}
	api := handlers.NewAPI(llm, &mockTTS{}, nil, discardLogger())

	body := `{"message":"What is this?","agentInstructions":"Be kind.","chatHistory":[{"role":"user","content":"Yo"},{"role":"assistant","content":"Hey"}],"imageBase64":"aW1n"}`
	req := httptest.NewRequest(http.MethodPost, "/api/ai/chat", strings.NewReader(body))
	w := httptest.NewRecorder()

	api.HandleChat(w, req)

	llm.mu.Lock()
	defer llm.mu.Unlock()
	if llm.prompt.System != "Be kind." || llm.prompt.Message != "What is this?" || llm.prompt.ImageBase64 != "aW1n" {
		t.Errorf("HandleChat() prompt = %+v", llm.prompt)
	}
	if len(llm.prompt.History) != 2 || llm.prompt.History[1].Role != models.RoleAssistant {
		t.Errorf("HandleChat() history = %+v", llm.prompt.History)
	}
}

func TestHandleTTS(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		tts        *mockTTS
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Not configured",
			method:     http.MethodPost,
			body:       `{"text":"Hi"}`,
			tts:        &mockTTS{},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "Empty text",
			method:     http.MethodPost,
			body:       `{"text":""}`,
			tts:        &mockTTS{configured: true},
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Text is required"}`,
		},
		{
			name:       "Audio",
			method:     http.MethodPost,
			body:       `{"text":"Hi"}`,
			tts:        &mockTTS{configured: true, audio: "ID3audio"},
			wantStatus: http.StatusOK,
			wantBody:   "ID3audio",
		},
		{
			name:   "Upstream status",
			method: http.MethodPost,
			body:   `{"text":"Hi","voiceId":"nobody"}`,
			tts: &mockTTS{configured: true, err: &services.SynthesisError{
				Provider: "elevenlabs", StatusCode: http.StatusTooManyRequests, Cause: services.ErrRateLimited,
			}},
			wantStatus: http.StatusTooManyRequests,
			wantBody:   `{"error":"ElevenLabs API error: 429"}`,
		},
		{
			name:       "Invalid method",
			method:     http.MethodDelete,
			tts:        &mockTTS{},
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := handlers.NewAPI(nil, tt.tts, nil, discardLogger())

			req := httptest.NewRequest(tt.method, "/api/tts", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			api.HandleTTS(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleTTS() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && strings.TrimSpace(w.Body.String()) != tt.wantBody {
				t.Errorf("HandleTTS() body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusOK && w.Header().Get("Content-Length") != "8" {
				t.Errorf("HandleTTS() content length = %q, want 8", w.Header().Get("Content-Length"))
			}
		})
	}
}

func TestHandleTTSVoices(t *testing.T) {
	api := handlers.NewAPI(nil, &mockTTS{}, nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/tts", nil)
	w := httptest.NewRecorder()

	api.HandleTTS(w, req)

	var res struct {
		Voices       []services.VoiceEntry `json:"voices"`
		DefaultVoice string                `json:"defaultVoice"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode voices: %v", err)
	}
	if res.DefaultVoice != "rachel" || len(res.Voices) != 2 {
		t.Errorf("HandleTTS() voices = %+v", res)
	}
}

func TestHandleTTSCache(t *testing.T) {
	tts := &mockTTS{configured: true, audio: "ID3audio"}
	cache := &mockCache{entries: map[string][]byte{}}
	api := handlers.NewAPI(nil, tts, cache, discardLogger())

	for range 2 {
		req := httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(`{"text":"Hi"}`))
		w := httptest.NewRecorder()

		api.HandleTTS(w, req)

		if w.Body.String() != "ID3audio" {
			t.Errorf("HandleTTS() body = %q, want %q", w.Body.String(), "ID3audio")
		}
	}

	if tts.calls != 1 {
		t.Errorf("Synthesize() calls = %d, want 1", tts.calls)
	}
	if len(cache.entries) != 1 {
		t.Errorf("cache entries = %d, want 1", len(cache.entries))
	}
}

func TestHandleTTSCacheVoiceAliases(t *testing.T) {
	tts := &mockTTS{configured: true, audio: "ID3audio"}
	cache := &mockCache{entries: map[string][]byte{}}
	api := handlers.NewAPI(nil, tts, cache, discardLogger())

	bodies := []string{
		`{"text":"Hi"}`,
		`{"text":"Hi","voiceId":"Rachel"}`,
		`{"text":"Hi","voiceId":"rachel"}`,
		`{"text":"Hi","voiceId":"21m00Tcm4TlvDq8ikWAM"}`,
	}
	for _, body := range bodies {
		w := httptest.NewRecorder()
		api.HandleTTS(w, httptest.NewRequest(http.MethodPost, "/api/tts", strings.NewReader(body)))
		if w.Code != http.StatusOK {
			t.Errorf("HandleTTS(%s) status = %v, want %v", body, w.Code, http.StatusOK)
		}
	}

	if tts.calls != 1 {
		t.Errorf("Synthesize() calls = %d, want 1", tts.calls)
	}
	if len(cache.entries) != 1 {
		t.Errorf("cache entries = %d, want 1", len(cache.entries))
	}
}

func TestLogRequests(t *testing.T) {
	h := handlers.LogRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), discardLogger())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %v, want %v", w.Code, http.StatusTeapot)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header is missing")
	}
}

func (m *mockLLM) Chat(_ context.Context, prompt models.Prompt) iter.Seq2[string, error] {
	m.mu.Lock()
	m.prompt = prompt
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		if m.err != nil {
			yield("", m.err)
			return
		}
		for _, resp := range m.responses {
			if !yield(resp, nil) {
				return
			}
		}
		if m.midErr != nil {
			yield("", m.midErr)
		}
	}
}

func (m *mockConversation) Snapshot() chat.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *mockConversation) Submit(_ context.Context, text string) (<-chan error, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot.Loading {
		return nil, chat.ErrTurnInFlight
	}
	m.sent = append(m.sent, text)
	// The accepted turn stays in flight until the test finishes it.
	m.snapshot.Loading = true
	done := make(chan error, 1)
	done <- nil
	return done, nil
}

func (m *mockConversation) SetInput(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.input = text
}

func (m *mockConversation) SetVision(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vision = append(m.vision, on)
}

func (m *mockConversation) SetAutoSpeak(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSpeak = append(m.autoSpeak, on)
}

func (m *mockConversation) StopSpeaking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *mockConversation) ToggleListening(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggles++
	return nil
}

func (m *mockConversation) Apply(action chat.QuickAction) error {
	if action != chat.QuickActionSee && action != chat.QuickActionHelp {
		return chat.ErrUnknownAction
	}
	return nil
}

func (m *mockConversation) Subscribe(fn func(chat.Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *mockConversation) OnWarning(fn func(string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, fn)
}

func (m *mockConversation) sentMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *mockConversation) publish() {
	m.publishSnapshot(m.Snapshot())
}

func (m *mockConversation) publishSnapshot(snap chat.Snapshot) {
	m.mu.Lock()
	subs := append([]func(chat.Snapshot){}, m.subs...)
	m.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

func (m *mockConversation) warn(msg string) {
	for _, fn := range m.warnings {
		fn(msg)
	}
}

func (m *mockTTS) Configured() bool { return m.configured }

func (m *mockTTS) Voices() []services.VoiceEntry {
	return []services.VoiceEntry{{Name: "adam", ID: "a"}, {Name: "rachel", ID: "r"}}
}

func (m *mockTTS) Synthesize(_ context.Context, _, _ string) (io.ReadCloser, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return io.NopCloser(bytes.NewReader([]byte(m.audio))), nil
}

func (m *mockCache) Audio(_ context.Context, key string) ([]byte, bool, error) {
	audio, ok := m.entries[key]
	return audio, ok, nil
}

func (m *mockCache) PutAudio(_ context.Context, key string, audio []byte) error {
	m.entries[key] = audio
	return nil
}
