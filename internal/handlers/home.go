package handlers

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MegaGrindStone/meet-assistant/internal/chat"
	"github.com/MegaGrindStone/meet-assistant/internal/models"
)

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	HasImage  bool
	Timestamp time.Time

	// Streaming marks the assistant message that is still being written.
	Streaming bool
}

type homePageData struct {
	AgentName string
	Initial   string
	Messages  []message
	State     state
}

// state is the part of a snapshot the page applies without re-rendering the conversation.
type state struct {
	Presence        models.Presence `json:"presence"`
	Label           string          `json:"label"`
	Input           string          `json:"input"`
	Loading         bool            `json:"loading"`
	Listening       bool            `json:"listening"`
	Speaking        bool            `json:"speaking"`
	Capturing       bool            `json:"capturing"`
	Vision          bool            `json:"vision"`
	AutoSpeak       bool            `json:"autoSpeak"`
	VoiceSupported  bool            `json:"voiceSupported"`
	SpeechSupported bool            `json:"speechSupported"`
}

// HandleHome renders the panel page with the conversation so far.
func (p *Panel) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	snap := p.conv.Snapshot()
	msgs, err := p.messages(snap)
	if err != nil {
		p.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	name := agentName(snap)
	data := homePageData{
		AgentName: name,
		Initial:   strings.ToUpper(string([]rune(name)[:1])),
		Messages:  msgs,
		State:     newState(snap),
	}

	if err := p.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		p.logger.Error("Failed to execute home template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func (p *Panel) messages(snap chat.Snapshot) ([]message, error) {
	msgs := make([]message, len(snap.Messages))
	for i, m := range snap.Messages {
		content, err := p.renderContent(m)
		if err != nil {
			return nil, fmt.Errorf("failed to render message %s: %w", m.ID, err)
		}
		msgs[i] = message{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   content,
			HasImage:  m.HasImage,
			Timestamp: m.Timestamp,
			Streaming: snap.Loading && i == len(snap.Messages)-1 && m.Role == models.RoleAssistant,
		}
	}
	return msgs, nil
}

// renderContent renders assistant replies as markdown. User messages are shown as typed.
func (p *Panel) renderContent(m models.Message) (template.HTML, error) {
	if m.Role != models.RoleAssistant {
		return template.HTML(template.HTMLEscapeString(m.Content)), nil
	}
	return p.renderer.Render(m.Content)
}

func (p *Panel) renderMessages(snap chat.Snapshot) (string, error) {
	msgs, err := p.messages(snap)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if err := p.templates.ExecuteTemplate(&sb, "messages", msgs); err != nil {
		return "", fmt.Errorf("failed to execute messages template: %w", err)
	}
	return sb.String(), nil
}

func newState(snap chat.Snapshot) state {
	return state{
		Presence:        snap.Presence,
		Label:           snap.Presence.Label(),
		Input:           snap.Input,
		Loading:         snap.Loading,
		Listening:       snap.Listening,
		Speaking:        snap.Speaking,
		Capturing:       snap.Capturing,
		Vision:          snap.Vision,
		AutoSpeak:       snap.AutoSpeak,
		VoiceSupported:  snap.VoiceSupported,
		SpeechSupported: snap.SpeechSupported,
	}
}

func stateJSON(snap chat.Snapshot) (string, error) {
	b, err := json.Marshal(newState(snap))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func agentName(snap chat.Snapshot) string {
	if snap.AgentName == "" {
		return "Assistant"
	}
	return snap.AgentName
}
