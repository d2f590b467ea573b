package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/meet-assistant/internal/fallback"
)

// Voice is a voice offered by a local Synthesizer.
type Voice struct {
	Name string
	Lang string
}

// Utterance is a request to speak Text locally.
type Utterance struct {
	Text   string
	Voice  Voice
	Rate   float64
	Pitch  float64
	Volume float64
}

// Playback is an audio output that has started. Wait blocks until it finishes on its own or is stopped.
// Stop may be called any number of times.
type Playback interface {
	Wait() error
	Stop()
}

// Synthesizer is the host's local text-to-speech engine.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u Utterance) (Playback, error)
}

// RemoteVoice turns text into encoded audio, typically by calling the voice synthesis backend.
type RemoteVoice interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// AudioSink plays encoded audio produced by a RemoteVoice.
type AudioSink interface {
	Play(ctx context.Context, audio io.Reader) (Playback, error)
}

// Availability is what the current session knows about the remote voice.
type Availability int

const (
	// AvailabilityUnknown means the remote voice has not been tried yet.
	AvailabilityUnknown Availability = iota
	// AvailabilityAvailable means the last remote attempt succeeded.
	AvailabilityAvailable
	// AvailabilityUnavailable means a remote attempt failed. It is not retried for the rest of the session.
	AvailabilityUnavailable
)

func (a Availability) String() string {
	switch a {
	case AvailabilityAvailable:
		return "available"
	case AvailabilityUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// VoiceSession holds the remote voice availability for one user session. Players built for the same
// session share it, and a new session starts from AvailabilityUnknown.
type VoiceSession struct {
	mu           sync.Mutex
	availability Availability
}

// NewVoiceSession creates a session with unknown remote availability.
func NewVoiceSession() *VoiceSession {
	return &VoiceSession{}
}

// Availability returns the current remote availability.
func (s *VoiceSession) Availability() Availability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availability
}

func (s *VoiceSession) mark(a Availability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability = a
}

// PlayerConfig configures a Player.
type PlayerConfig struct {
	RemoteEnabled   bool     `yaml:"remoteEnabled"`
	Language        string   `yaml:"language"`
	PreferredVoices []string `yaml:"preferredVoices"`
	Rate            float64  `yaml:"rate"`
	Pitch           float64  `yaml:"pitch"`
	Volume          float64  `yaml:"volume"`
}

// DefaultPlayerConfig returns the configuration used when nothing else is set.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		RemoteEnabled:   true,
		Language:        "en",
		PreferredVoices: []string{"Google", "Samantha", "Microsoft"},
		Rate:            1,
		Pitch:           1,
		Volume:          1,
	}
}

// Player speaks assistant replies. It prefers the remote voice and falls back to the local synthesizer,
// and it never lets two playbacks run at once: every Speak stops what is currently playing first.
type Player struct {
	cfg     PlayerConfig
	remote  RemoteVoice
	sink    AudioSink
	local   Synthesizer
	session *VoiceSession

	speakMu sync.Mutex

	mu          sync.Mutex
	generation  uint64
	current     Playback
	subscribers []func(speaking bool)

	logger *slog.Logger
}

// NewPlayer creates a Player. Any of remote, sink and local may be nil, in which case the corresponding
// channel is skipped. A nil session gets a fresh one.
func NewPlayer(
	cfg PlayerConfig,
	remote RemoteVoice,
	sink AudioSink,
	local Synthesizer,
	session *VoiceSession,
	logger *slog.Logger,
) *Player {
	if session == nil {
		session = NewVoiceSession()
	}
	return &Player{
		cfg:     cfg,
		remote:  remote,
		sink:    sink,
		local:   local,
		session: session,
		logger:  logger.With(slog.String("module", "player")),
	}
}

// IsSupported reports whether at least one speech channel is usable.
func (p *Player) IsSupported() bool {
	return p.local != nil || p.remoteUsable()
}

// IsSpeaking reports whether audio from either channel is playing.
func (p *Player) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Session returns the voice session the Player records remote availability in.
func (p *Player) Session() *VoiceSession {
	return p.session
}

// Subscribe registers fn to be called whenever the speaking state changes.
func (p *Player) Subscribe(fn func(speaking bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Speak normalizes text and plays it. Text that normalizes to nothing is ignored. Whatever is playing is
// stopped before the new audio starts. Speak returns once playback has started; the playback then runs
// until it finishes or Stop is called.
//
// A failure of the remote voice, including a failure to play the audio it returned, marks the remote
// voice unavailable for the session and the text is spoken locally instead.
func (p *Player) Speak(ctx context.Context, text string) error {
	spoken := ToSpeech(text)
	if spoken == "" {
		return nil
	}

	p.speakMu.Lock()
	defer p.speakMu.Unlock()

	gen := p.stop()

	var steps []fallback.Step[Playback]
	if p.remoteUsable() && p.session.Availability() != AvailabilityUnavailable {
		steps = append(steps, fallback.Step[Playback]{
			Name: "remote",
			Try: func(ctx context.Context) (Playback, error) {
				return p.speakRemote(ctx, spoken)
			},
		})
	}
	if p.local != nil {
		steps = append(steps, fallback.Step[Playback]{
			Name: "local",
			Try: func(ctx context.Context) (Playback, error) {
				return p.speakLocal(ctx, spoken)
			},
		})
	}
	if len(steps) == 0 {
		return ErrUnsupported
	}

	pb, channel, err := fallback.First(ctx, p.logger, steps...)
	if err != nil {
		p.logger.Warn("Failed to speak", slog.String(errLoggerKey, err.Error()))
		return fmt.Errorf("failed to speak: %w", err)
	}

	p.mu.Lock()
	if gen != p.generation {
		// Stopped while the audio was being prepared.
		p.mu.Unlock()
		pb.Stop()
		return nil
	}
	p.current = pb
	p.mu.Unlock()

	p.logger.Debug("Playback started", slog.String("channel", channel))
	p.notify(true)
	go p.watch(gen, pb)

	return nil
}

// Stop halts playback on both channels. It is safe to call when nothing is playing.
func (p *Player) Stop() {
	p.stop()
}

// stop invalidates the current playback and returns the new generation.
func (p *Player) stop() uint64 {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	pb := p.current
	p.current = nil
	p.mu.Unlock()

	if pb != nil {
		pb.Stop()
		p.notify(false)
	}
	return gen
}

func (p *Player) watch(gen uint64, pb Playback) {
	if err := pb.Wait(); err != nil {
		p.logger.Debug("Playback ended with error", slog.String(errLoggerKey, err.Error()))
	}

	p.mu.Lock()
	if gen != p.generation || p.current != pb {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	p.notify(false)
}

func (p *Player) remoteUsable() bool {
	return p.cfg.RemoteEnabled && p.remote != nil && p.sink != nil
}

func (p *Player) speakRemote(ctx context.Context, text string) (Playback, error) {
	pb, err := p.playRemote(ctx, text)
	if err != nil {
		p.logger.Info("Remote voice unavailable, falling back to local synthesis",
			slog.String(errLoggerKey, err.Error()))
		p.session.mark(AvailabilityUnavailable)
		return nil, err
	}
	p.session.mark(AvailabilityAvailable)
	return pb, nil
}

func (p *Player) playRemote(ctx context.Context, text string) (Playback, error) {
	body, err := p.remote.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize: %w", err)
	}
	defer body.Close()

	audio, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio")
	}

	// The sink may outlive ctx, playback is ended through Stop.
	pb, err := p.sink.Play(context.WithoutCancel(ctx), bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to play audio: %w", err)
	}
	return pb, nil
}

func (p *Player) speakLocal(ctx context.Context, text string) (Playback, error) {
	u := Utterance{
		Text:   text,
		Rate:   p.cfg.Rate,
		Pitch:  p.cfg.Pitch,
		Volume: p.cfg.Volume,
	}

	voices, err := p.local.Voices(ctx)
	if err != nil {
		p.logger.Debug("Failed to list voices", slog.String(errLoggerKey, err.Error()))
	} else {
		u.Voice = PickVoice(voices, p.cfg.PreferredVoices, p.cfg.Language)
	}

	pb, err := p.local.Speak(context.WithoutCancel(ctx), u)
	if err != nil {
		return nil, fmt.Errorf("failed to speak locally: %w", err)
	}
	return pb, nil
}

// PickVoice returns the first voice whose name contains one of the preferred names, else the first voice
// whose language starts with lang, else the zero Voice which leaves the choice to the engine.
func PickVoice(voices []Voice, preferred []string, lang string) Voice {
	for _, v := range voices {
		for _, name := range preferred {
			if name != "" && strings.Contains(v.Name, name) {
				return v
			}
		}
	}
	for _, v := range voices {
		if lang != "" && strings.HasPrefix(v.Lang, lang) {
			return v
		}
	}
	return Voice{}
}

func (p *Player) notify(speaking bool) {
	p.mu.Lock()
	subs := make([]func(bool), len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subs {
		fn(speaking)
	}
}
