package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry of a panel conversation. It contains the participant's role, the
// text content, whether a captured frame was attached when the message was sent, and the time it was
// created. The content of the last assistant message grows while its response is streamed in.
type Message struct {
	ID        string
	Role      Role
	Content   string
	HasImage  bool
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed or spoken by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// HistoryEntry is the role-and-content projection of a Message that is sent to the chat backend. The
// backend is stateless, so the whole prior conversation travels with every request.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of the chat backend call.
type ChatRequest struct {
	Message           string         `json:"message"`
	AgentInstructions string         `json:"agentInstructions"`
	ChatHistory       []HistoryEntry `json:"chatHistory"`
	ImageBase64       string         `json:"imageBase64,omitempty"`
}

// Prompt is everything a language model needs for one assistant turn. ImageBase64 holds a JPEG frame
// without a data URL prefix and is empty when no frame is attached.
type Prompt struct {
	System      string
	History     []HistoryEntry
	Message     string
	ImageBase64 string
}

// SpeechRequest is the body of the voice synthesis backend call.
type SpeechRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

// ErrorResponse is the JSON body returned by both backends on a non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewMessage creates a message with a fresh ID stamped with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// History projects messages into the history entries of a chat request, preserving order.
func History(messages []Message) []HistoryEntry {
	entries := make([]HistoryEntry, len(messages))
	for i, msg := range messages {
		entries[i] = HistoryEntry{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}
	return entries
}
