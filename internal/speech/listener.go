package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Recognizer is a continuous speech recognition engine. Start begins a recognition session, Next blocks
// until the engine reports something, and Stop asks the engine to end the session. After Stop the engine
// is expected to deliver an EventEnd from Next.
type Recognizer interface {
	Start(ctx context.Context) error
	Next(ctx context.Context) (RecognitionEvent, error)
	Stop() error
}

// EventKind is the kind of a RecognitionEvent.
type EventKind int

// RecognitionEvent is a single report of a Recognizer.
type RecognitionEvent struct {
	Kind       EventKind
	Transcript string
	Final      bool
	Err        error
}

const (
	// EventResult carries a partial or final transcript.
	EventResult EventKind = iota
	// EventEnd reports that the engine ended the session.
	EventEnd
	// EventError reports that the engine failed. The session is over.
	EventError
)

// ErrUnsupported is returned when the host has no engine for the requested capability.
var ErrUnsupported = errors.New("speech capability is not supported on this host")

const errLoggerKey = "err"

// Listener captures the user's speech through a Recognizer and keeps the latest final transcript. A
// Listener runs at most one session at a time. The session ends when StopListening is called or when
// the engine ends or fails on its own, and is never restarted automatically.
type Listener struct {
	rec Recognizer

	mu          sync.Mutex
	listening   bool
	transcript  string
	done        chan struct{}
	cancel      context.CancelFunc
	subscribers []func(listening bool)

	logger *slog.Logger
}

// NewListener creates a Listener over rec. A nil rec produces a Listener that reports itself unsupported.
func NewListener(rec Recognizer, logger *slog.Logger) *Listener {
	return &Listener{
		rec:    rec,
		logger: logger.With(slog.String("module", "listener")),
	}
}

// IsSupported reports whether the host provides speech recognition.
func (l *Listener) IsSupported() bool {
	return l.rec != nil
}

// IsListening reports whether a recognition session is active.
func (l *Listener) IsListening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

// Transcript returns the latest final transcript of the current or last session.
func (l *Listener) Transcript() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transcript
}

// Subscribe registers fn to be called whenever the listening state changes. Callbacks run outside the
// Listener's lock, on the goroutine that caused the change.
func (l *Listener) Subscribe(fn func(listening bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

// StartListening starts a new session with an empty transcript. It is a no-op while a session is active.
// The session outlives ctx only as far as ctx allows: canceling ctx ends it.
func (l *Listener) StartListening(ctx context.Context) error {
	if l.rec == nil {
		return ErrUnsupported
	}

	l.mu.Lock()
	if l.listening {
		l.mu.Unlock()
		return nil
	}

	sessCtx, cancel := context.WithCancel(ctx)
	if err := l.rec.Start(sessCtx); err != nil {
		l.mu.Unlock()
		cancel()
		return fmt.Errorf("failed to start recognizer: %w", err)
	}

	done := make(chan struct{})
	l.listening = true
	l.transcript = ""
	l.done = done
	l.cancel = cancel
	l.mu.Unlock()

	l.notify(true)
	go l.pump(sessCtx, done)

	return nil
}

// StopListening asks the engine to end the current session. Calling it without an active session does
// nothing. The final transcript becomes available to Wait once the engine acknowledges the end.
func (l *Listener) StopListening() {
	l.mu.Lock()
	listening := l.listening
	l.mu.Unlock()
	if !listening {
		return
	}

	if err := l.rec.Stop(); err != nil {
		l.logger.Warn("Failed to stop recognizer", slog.String(errLoggerKey, err.Error()))
		l.mu.Lock()
		cancel := l.cancel
		l.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

// Wait blocks until the current session ends and returns its final transcript. Without an active
// session it returns the transcript of the last one immediately.
func (l *Listener) Wait(ctx context.Context) (string, error) {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return l.Transcript(), nil
}

func (l *Listener) pump(ctx context.Context, done chan struct{}) {
	defer l.finish(done)

	for {
		ev, err := l.rec.Next(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				l.logger.Warn("Recognizer failed", slog.String(errLoggerKey, err.Error()))
			}
			return
		}

		switch ev.Kind {
		case EventResult:
			if !ev.Final {
				continue
			}
			l.mu.Lock()
			l.transcript = strings.TrimSpace(ev.Transcript)
			l.mu.Unlock()
		case EventEnd:
			return
		case EventError:
			if ev.Err != nil {
				l.logger.Warn("Recognition error", slog.String(errLoggerKey, ev.Err.Error()))
			}
			return
		}
	}
}

func (l *Listener) finish(done chan struct{}) {
	l.mu.Lock()
	l.listening = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()

	l.notify(false)
	close(done)
}

func (l *Listener) notify(listening bool) {
	l.mu.Lock()
	subs := make([]func(bool), len(l.subscribers))
	copy(subs, l.subscribers)
	l.mu.Unlock()

	for _, fn := range subs {
		fn(listening)
	}
}
