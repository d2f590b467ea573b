package device

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/MegaGrindStone/meet-assistant/internal/speech"
)

// CommandRecognizer runs a speech recognition engine as a child process, one process per session. The
// engine prints one result per line on stdout:
//
//	partial: <interim transcript>
//	final: <transcript>
//	error: <message>
//
// and ends the session by exiting. Closing its stdin asks it to finish.
type CommandRecognizer struct {
	path string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan speech.RecognitionEvent

	logger *slog.Logger
}

// NewCommandRecognizer returns a recognizer running name with args. It fails with ErrNotInstalled when
// name is not on PATH.
func NewCommandRecognizer(name string, args []string, logger *slog.Logger) (*CommandRecognizer, error) {
	path, err := lookPath(name)
	if err != nil {
		return nil, err
	}
	return &CommandRecognizer{
		path:   path,
		args:   args,
		logger: logger.With(slog.String("module", "recognizer")),
	}, nil
}

// Start launches the engine. The process is killed when ctx is canceled.
func (r *CommandRecognizer) Start(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, r.path, r.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recognizer: %w", err)
	}

	events := make(chan speech.RecognitionEvent, 16)

	r.mu.Lock()
	r.cmd = cmd
	r.stdin = stdin
	r.events = events
	r.mu.Unlock()

	go r.read(cmd, stdout, events)
	return nil
}

// Next returns the next event of the current session.
func (r *CommandRecognizer) Next(ctx context.Context) (speech.RecognitionEvent, error) {
	r.mu.Lock()
	events := r.events
	r.mu.Unlock()
	if events == nil {
		return speech.RecognitionEvent{}, errors.New("recognizer not started")
	}

	select {
	case ev, ok := <-events:
		if !ok {
			return speech.RecognitionEvent{Kind: speech.EventEnd}, nil
		}
		return ev, nil
	case <-ctx.Done():
		return speech.RecognitionEvent{}, ctx.Err()
	}
}

// Stop asks the engine to finish the session by closing its stdin.
func (r *CommandRecognizer) Stop() error {
	r.mu.Lock()
	stdin := r.stdin
	r.stdin = nil
	r.mu.Unlock()
	if stdin == nil {
		return nil
	}
	return stdin.Close()
}

func (r *CommandRecognizer) read(cmd *exec.Cmd, stdout io.Reader, events chan<- speech.RecognitionEvent) {
	defer close(events)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		ev, ok := ParseRecognitionLine(scanner.Text())
		if !ok {
			continue
		}
		events <- ev
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("Failed to read recognizer output", slog.String(errLoggerKey, err.Error()))
	}

	if err := cmd.Wait(); err != nil && cmd.ProcessState != nil && !cmd.ProcessState.Success() {
		r.logger.Debug("Recognizer exited", slog.String(errLoggerKey, err.Error()))
	}
}

// ParseRecognitionLine decodes one line of engine output. Lines that aren't results are skipped.
func ParseRecognitionLine(line string) (speech.RecognitionEvent, bool) {
	kind, text, found := strings.Cut(line, ":")
	if !found {
		return speech.RecognitionEvent{}, false
	}
	text = strings.TrimSpace(text)

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "partial":
		return speech.RecognitionEvent{Kind: speech.EventResult, Transcript: text}, true
	case "final":
		return speech.RecognitionEvent{Kind: speech.EventResult, Transcript: text, Final: true}, true
	case "error":
		return speech.RecognitionEvent{Kind: speech.EventError, Err: errors.New(text)}, true
	default:
		return speech.RecognitionEvent{}, false
	}
}
