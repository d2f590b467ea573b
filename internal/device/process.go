// Package device implements the capture and speech capabilities on top of host programs: a speech
// recognition engine, espeak-ng or say, an audio player such as ffplay, and ffmpeg for the camera and
// the screen.
package device

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/MegaGrindStone/meet-assistant/internal/speech"
)

// ErrNotInstalled is returned when the program backing a capability is not on PATH.
var ErrNotInstalled = errors.New("program not installed")

const errLoggerKey = "err"

// processPlayback is a Playback backed by a running process. Stopping it kills the process.
type processPlayback struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error

	stopOnce sync.Once
	stopped  atomic.Bool
}

func startPlayback(cmd *exec.Cmd) (speech.Playback, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	p := &processPlayback{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Wait blocks until the process exits. A process killed by Stop is not an error.
func (p *processPlayback) Wait() error {
	<-p.done
	if p.stopped.Load() {
		return nil
	}
	return p.err
}

func (p *processPlayback) Stop() {
	p.stopOnce.Do(func() {
		p.stopped.Store(true)
		select {
		case <-p.done:
		default:
			_ = p.cmd.Process.Kill()
		}
	})
}

// lookPath resolves name on PATH, wrapping a miss in ErrNotInstalled.
func lookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotInstalled, name)
	}
	return path, nil
}
