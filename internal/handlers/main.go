package handlers

import (
	"context"
	"html/template"
	"log/slog"
	"sync"
	"time"

	meetassistant "github.com/MegaGrindStone/meet-assistant"
	"github.com/MegaGrindStone/meet-assistant/internal/chat"
	"github.com/tmaxmax/go-sse"
)

// Conversation is the chat orchestrator driven by the panel page.
type Conversation interface {
	Snapshot() chat.Snapshot
	Submit(ctx context.Context, text string) (<-chan error, error)
	SetInput(text string)
	SetVision(on bool)
	SetAutoSpeak(on bool)
	StopSpeaking()
	ToggleListening(ctx context.Context) error
	Apply(action chat.QuickAction) error
	Subscribe(fn func(chat.Snapshot))
	OnWarning(fn func(string))
}

// Renderer turns the markdown of a message into HTML.
type Renderer interface {
	Render(src string) (template.HTML, error)
}

// Panel serves the assistant panel: the page itself, the actions it posts and a server-sent events feed
// pushing every change of the conversation to the page.
type Panel struct {
	sseSrv    *sse.Server
	templates *template.Template

	conv     Conversation
	renderer Renderer

	// ctx outlives the requests that start turns; it ends on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	lastSeq      uint64
	lastMessages string
	lastState    string

	logger *slog.Logger
}

// SSE event types of the panel feed.
const (
	messagesSSEType = "messages"
	stateSSEType    = "state"
	warningSSEType  = "warning"
	closeSSEType    = "closePanel"

	errLoggerKey = "err"
)

// NewPanel creates the panel handlers for conv and subscribes to its changes. The templates are parsed
// from the embedded filesystem.
func NewPanel(conv Conversation, renderer Renderer, logger *slog.Logger) (*Panel, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		meetassistant.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		sseSrv:    &sse.Server{},
		templates: tmpl,
		conv:      conv,
		renderer:  renderer,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "panel")),
	}

	conv.Subscribe(p.publishSnapshot)
	conv.OnWarning(p.publishWarning)

	return p, nil
}

// Shutdown gracefully terminates the panel's SSE server. It broadcasts a close message to all connected
// clients and waits up to 5 seconds for connections to terminate. After the timeout, any remaining
// connections are forcefully closed.
func (p *Panel) Shutdown(ctx context.Context) error {
	p.cancel()

	e := &sse.Message{Type: sse.Type(closeSSEType)}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = p.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return p.sseSrv.Shutdown(ctx)
}

func (p *Panel) publishSnapshot(snap chat.Snapshot) {
	msgs, err := p.renderMessages(snap)
	if err != nil {
		p.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		return
	}
	state, err := stateJSON(snap)
	if err != nil {
		p.logger.Error("Failed to encode state", slog.String(errLoggerKey, err.Error()))
		return
	}

	// Snapshots arrive for every change of any flag; only what changed is sent, and never an older
	// snapshot after a newer one.
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Seq != 0 {
		if snap.Seq <= p.lastSeq {
			return
		}
		p.lastSeq = snap.Seq
	}
	if msgs != p.lastMessages {
		p.lastMessages = msgs
		p.publish(messagesSSEType, msgs)
	}
	if state != p.lastState {
		p.lastState = state
		p.publish(stateSSEType, state)
	}
}

func (p *Panel) publishWarning(msg string) {
	p.publish(warningSSEType, msg)
}

func (p *Panel) publish(typ, data string) {
	msg := sse.Message{Type: sse.Type(typ)}
	msg.AppendData(data)
	if err := p.sseSrv.Publish(&msg); err != nil {
		p.logger.Error("Failed to publish event",
			slog.String("type", typ),
			slog.String(errLoggerKey, err.Error()))
	}
}
