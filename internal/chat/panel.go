// Package chat runs the conversation of the assistant panel: it owns the message list, captures a frame
// for vision turns, streams the reply into the list as it arrives and hands finished replies to the voice.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/meet-assistant/internal/capture"
	"github.com/MegaGrindStone/meet-assistant/internal/fallback"
	"github.com/MegaGrindStone/meet-assistant/internal/models"
)

// Backend streams the reply of the chat backend to a request. An error returned before the sequence is
// produced means no reply text was received.
type Backend interface {
	Stream(ctx context.Context, req models.ChatRequest) (iter.Seq2[string, error], error)
}

// Speaker reads replies aloud.
type Speaker interface {
	IsSupported() bool
	IsSpeaking() bool
	Speak(ctx context.Context, text string) error
	Stop()
	Subscribe(fn func(speaking bool))
}

// VoiceInput turns the user's speech into a transcript.
type VoiceInput interface {
	IsSupported() bool
	IsListening() bool
	StartListening(ctx context.Context) error
	StopListening()
	Transcript() string
	Subscribe(fn func(listening bool))
}

// FrameCapturer grabs a still image of the meeting.
type FrameCapturer interface {
	IsCapturing() bool
	CaptureFromStream(ctx context.Context, s capture.Stream) (capture.Frame, error)
	CaptureFrame(ctx context.Context) (capture.Frame, error)
	CaptureScreen(ctx context.Context) (capture.Frame, error)
}

// Config holds the per-agent settings of a panel.
type Config struct {
	AgentName         string `yaml:"agentName"`
	AgentInstructions string `yaml:"agentInstructions"`
	AutoSpeak         bool   `yaml:"autoSpeak"`
	Vision            bool   `yaml:"vision"`
}

// QuickAction is one of the canned prompts offered by the panel.
type QuickAction string

// Snapshot is the observable state of a panel at one instant.
type Snapshot struct {
	// Seq orders the snapshots delivered to subscribers; a later snapshot has a larger Seq. Snapshots
	// returned by Panel.Snapshot have Seq 0.
	Seq uint64

	AgentName string
	Messages  []models.Message
	Input     string
	Presence  models.Presence
	Loading   bool
	Listening bool
	Speaking  bool
	Capturing bool
	Vision    bool
	AutoSpeak bool

	VoiceSupported  bool
	SpeechSupported bool
}

// Panel is the chat orchestrator of one agent. At most one turn is in flight at a time.
type Panel struct {
	cfg      Config
	backend  Backend
	speaker  Speaker
	listener VoiceInput
	capturer FrameCapturer
	camera   capture.Stream

	mu        sync.Mutex
	messages  []models.Message
	input     string
	loading   bool
	vision    bool
	autoSpeak bool

	subMu       sync.Mutex
	subscribers []func(Snapshot)

	// pubMu serializes deliveries so that subscribers see snapshots in the order they were taken.
	pubMu sync.Mutex
	seq   uint64
	warnings    []func(string)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

const (
	// QuickActionSee turns vision on and asks about the meeting.
	QuickActionSee QuickAction = "see"
	// QuickActionHelp starts a request for help.
	QuickActionHelp QuickAction = "help"
)

// FallbackReply is the assistant message appended when the backend can't be reached.
const FallbackReply = "Sorry, something went wrong."

const captureWarning = "Could not capture frame"

var (
	// ErrEmptyInput is returned by Send when the message is blank.
	ErrEmptyInput = errors.New("message is empty")
	// ErrTurnInFlight is returned by Send while a previous turn is still streaming.
	ErrTurnInFlight = errors.New("a reply is already in progress")
	// ErrUnknownAction is returned by Apply for an action the panel doesn't offer.
	ErrUnknownAction = errors.New("unknown quick action")
)

const errLoggerKey = "err"

// NewPanel creates a panel. camera is the user's camera stream, nil when the camera is off.
func NewPanel(
	cfg Config,
	backend Backend,
	speaker Speaker,
	listener VoiceInput,
	capturer FrameCapturer,
	camera capture.Stream,
	logger *slog.Logger,
) *Panel {
	ctx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		cfg:       cfg,
		backend:   backend,
		speaker:   speaker,
		listener:  listener,
		capturer:  capturer,
		camera:    camera,
		vision:    cfg.Vision,
		autoSpeak: cfg.AutoSpeak,
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger.With(slog.String("module", "chat")),
	}

	speaker.Subscribe(func(bool) { p.publish() })
	listener.Subscribe(p.listeningChanged)

	return p
}

// Subscribe registers fn to receive a snapshot after every state change.
func (p *Panel) Subscribe(fn func(Snapshot)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// OnWarning registers fn to receive the transient notices the panel shows to the user.
func (p *Panel) OnWarning(fn func(string)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.warnings = append(p.warnings, fn)
}

// Snapshot returns the current state of the panel.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	msgs := make([]models.Message, len(p.messages))
	copy(msgs, p.messages)
	input, loading, vision, autoSpeak := p.input, p.loading, p.vision, p.autoSpeak
	p.mu.Unlock()

	listening := p.listener.IsListening()
	speaking := p.speaker.IsSpeaking()

	return Snapshot{
		AgentName:       p.cfg.AgentName,
		Messages:        msgs,
		Input:           input,
		Presence:        models.DerivePresence(listening, loading, speaking),
		Loading:         loading,
		Listening:       listening,
		Speaking:        speaking,
		Capturing:       p.capturer.IsCapturing(),
		Vision:          vision,
		AutoSpeak:       autoSpeak,
		VoiceSupported:  p.listener.IsSupported(),
		SpeechSupported: p.speaker.IsSupported(),
	}
}

// Messages returns a copy of the conversation so far.
func (p *Panel) Messages() []models.Message {
	return p.Snapshot().Messages
}

// Presence returns the indicator shown next to the agent's name.
func (p *Panel) Presence() models.Presence {
	return p.Snapshot().Presence
}

// SetInput replaces the draft in the message box.
func (p *Panel) SetInput(text string) {
	p.mu.Lock()
	p.input = text
	p.mu.Unlock()
	p.publish()
}

// SetVision switches frame capture for subsequent turns.
func (p *Panel) SetVision(on bool) {
	p.mu.Lock()
	p.vision = on
	p.mu.Unlock()
	p.publish()
}

// SetAutoSpeak switches reading replies aloud. Any reply being read is stopped.
func (p *Panel) SetAutoSpeak(on bool) {
	if p.speaker.IsSpeaking() {
		p.speaker.Stop()
	}
	p.mu.Lock()
	p.autoSpeak = on
	p.mu.Unlock()
	p.publish()
}

// StopSpeaking interrupts the reply being read.
func (p *Panel) StopSpeaking() {
	p.speaker.Stop()
}

// Apply performs a quick action.
func (p *Panel) Apply(action QuickAction) error {
	p.mu.Lock()
	switch action {
	case QuickActionSee:
		p.vision = true
		p.input = "What do you see?"
	case QuickActionHelp:
		p.input = "Help me with "
	default:
		p.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	p.mu.Unlock()
	p.publish()
	return nil
}

// ToggleListening starts a voice session, or ends the running one. The transcript of a session is
// submitted as a message when the session ends.
func (p *Panel) ToggleListening(ctx context.Context) error {
	if p.listener.IsListening() {
		p.listener.StopListening()
		return nil
	}
	if err := p.listener.StartListening(ctx); err != nil {
		return fmt.Errorf("failed to start listening: %w", err)
	}
	return nil
}

// Send runs one turn: it appends the user message, optionally captures a frame, streams the reply into a
// new assistant message and reads the finished reply aloud when auto-speak is on.
//
// Send returns ErrEmptyInput for a blank message and ErrTurnInFlight while another turn runs; neither
// changes the conversation. When the backend can't be reached, FallbackReply is appended and the error is
// returned.
func (p *Panel) Send(ctx context.Context, text string) error {
	t, err := p.begin(text)
	if err != nil {
		return err
	}
	return p.run(ctx, t)
}

// Submit accepts a turn the way Send does and runs it in the background. The acceptance errors of Send
// are returned directly; the outcome of an accepted turn is delivered on the returned channel.
func (p *Panel) Submit(ctx context.Context, text string) (<-chan error, error) {
	t, err := p.begin(text)
	if err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		done <- p.run(ctx, t)
	}()
	return done, nil
}

// turn holds what a turn took from the panel when it was accepted.
type turn struct {
	text    string
	vision  bool
	history []models.HistoryEntry
}

// begin applies the turn guards and marks the panel loading.
func (p *Panel) begin(text string) (turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return turn{}, ErrEmptyInput
	}

	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return turn{}, ErrTurnInFlight
	}
	p.loading = true
	p.input = ""
	t := turn{
		text:    text,
		vision:  p.vision,
		history: models.History(p.messages),
	}
	p.mu.Unlock()
	p.publish()

	return t, nil
}

func (p *Panel) run(ctx context.Context, t turn) error {
	defer func() {
		p.mu.Lock()
		p.loading = false
		p.mu.Unlock()
		p.publish()
	}()

	var frame capture.Frame
	if t.vision {
		f, err := p.captureFrame(ctx)
		if err != nil {
			p.logger.Warn("Failed to capture frame", slog.String(errLoggerKey, err.Error()))
			p.warn(captureWarning)
		} else {
			frame = f
		}
	}

	userMsg := models.NewMessage(models.RoleUser, t.text)
	userMsg.HasImage = !frame.IsZero()
	p.appendMessage(userMsg)

	req := models.ChatRequest{
		Message:           t.text,
		AgentInstructions: SystemPrompt(p.cfg.AgentInstructions, userMsg.HasImage),
		ChatHistory:       t.history,
		ImageBase64:       frame.Base64,
	}

	reply, err := p.stream(ctx, req)
	if err != nil {
		p.appendMessage(models.NewMessage(models.RoleAssistant, FallbackReply))
		return fmt.Errorf("failed to get reply: %w", err)
	}

	p.mu.Lock()
	autoSpeak := p.autoSpeak
	p.mu.Unlock()

	if autoSpeak && reply != "" && p.speaker.IsSupported() {
		if err := p.speaker.Speak(ctx, reply); err != nil {
			p.logger.Warn("Failed to speak reply", slog.String(errLoggerKey, err.Error()))
		}
	}
	return nil
}

// Close ends the panel's background work and waits for voice turns started by it.
func (p *Panel) Close() {
	p.cancel()
	p.listener.StopListening()
	p.speaker.Stop()
	p.wg.Wait()
}

// stream appends an empty assistant message and grows it with every fragment of the reply. A failure
// after the first fragment keeps the partial reply.
func (p *Panel) stream(ctx context.Context, req models.ChatRequest) (string, error) {
	seq, err := p.backend.Stream(ctx, req)
	if err != nil {
		return "", err
	}

	assistant := models.NewMessage(models.RoleAssistant, "")
	p.appendMessage(assistant)

	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			p.logger.Warn("Reply stream interrupted", slog.String(errLoggerKey, err.Error()))
			break
		}
		sb.WriteString(chunk)
		p.updateMessage(assistant.ID, sb.String())
	}
	return sb.String(), nil
}

// captureFrame tries the camera stream, then the videos and canvases of the meeting, then the screen.
func (p *Panel) captureFrame(ctx context.Context) (capture.Frame, error) {
	steps := []fallback.Step[capture.Frame]{
		{Name: "meeting", Try: p.capturer.CaptureFrame},
		{Name: "screen", Try: p.capturer.CaptureScreen},
	}
	if p.camera != nil {
		camera := fallback.Step[capture.Frame]{
			Name: "camera",
			Try: func(ctx context.Context) (capture.Frame, error) {
				return p.capturer.CaptureFromStream(ctx, p.camera)
			},
		}
		steps = append([]fallback.Step[capture.Frame]{camera}, steps...)
	}

	frame, source, err := fallback.First(ctx, p.logger, steps...)
	if err != nil {
		return capture.Frame{}, err
	}
	p.logger.Debug("Captured frame", slog.String("source", source), slog.String("frame", frame.Source))
	return frame, nil
}

func (p *Panel) listeningChanged(listening bool) {
	p.publish()
	if listening || p.ctx.Err() != nil {
		return
	}

	transcript := p.listener.Transcript()
	if transcript == "" {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		err := p.Send(p.ctx, transcript)
		if errors.Is(err, ErrTurnInFlight) {
			// Keep the words so that the user can send them once the reply is done.
			p.SetInput(transcript)
			return
		}
		if err != nil {
			p.logger.Warn("Voice turn failed", slog.String(errLoggerKey, err.Error()))
		}
	}()
}

func (p *Panel) appendMessage(msg models.Message) {
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	p.publish()
}

func (p *Panel) updateMessage(id, content string) {
	p.mu.Lock()
	for i := range p.messages {
		if p.messages[i].ID == id {
			p.messages[i].Content = content
			break
		}
	}
	p.mu.Unlock()
	p.publish()
}

func (p *Panel) publish() {
	p.subMu.Lock()
	subs := make([]func(Snapshot), len(p.subscribers))
	copy(subs, p.subscribers)
	p.subMu.Unlock()
	if len(subs) == 0 {
		return
	}

	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	p.seq++
	snap := p.Snapshot()
	snap.Seq = p.seq
	for _, fn := range subs {
		fn(snap)
	}
}

func (p *Panel) warn(msg string) {
	p.subMu.Lock()
	fns := make([]func(string), len(p.warnings))
	copy(fns, p.warnings)
	p.subMu.Unlock()
	for _, fn := range fns {
		fn(msg)
	}
}
