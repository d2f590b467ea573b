package models

// Presence is the assistant state shown by the avatar and the panel header. It is never stored; it is
// derived on every render from the listening, loading and speaking flags.
type Presence string

const (
	PresenceIdle      Presence = "idle"
	PresenceListening Presence = "listening"
	PresenceThinking  Presence = "thinking"
	PresenceSpeaking  Presence = "speaking"
)

// DerivePresence resolves the three flags with the priority speaking > loading > listening > idle.
func DerivePresence(listening, loading, speaking bool) Presence {
	switch {
	case speaking:
		return PresenceSpeaking
	case loading:
		return PresenceThinking
	case listening:
		return PresenceListening
	default:
		return PresenceIdle
	}
}

// Label returns the short status line the panel header shows for the presence.
func (p Presence) Label() string {
	switch p {
	case PresenceSpeaking:
		return "Speaking..."
	case PresenceThinking:
		return "Thinking..."
	case PresenceListening:
		return "Listening..."
	default:
		return "Online"
	}
}
