package device

import (
	"context"
	"io"
	"log/slog"
	"os/exec"

	"github.com/MegaGrindStone/meet-assistant/internal/speech"
)

// CommandSink plays encoded audio by piping it into a player program.
type CommandSink struct {
	path string
	args []string

	logger *slog.Logger
}

// DefaultSinkArgs make ffplay read audio from stdin without opening a window and exit when done.
var DefaultSinkArgs = []string{"-nodisp", "-autoexit", "-loglevel", "quiet", "-"}

// NewCommandSink returns a sink running name with args. It fails with ErrNotInstalled when name is not
// on PATH.
func NewCommandSink(name string, args []string, logger *slog.Logger) (*CommandSink, error) {
	path, err := lookPath(name)
	if err != nil {
		return nil, err
	}
	return &CommandSink{
		path:   path,
		args:   args,
		logger: logger.With(slog.String("module", "sink")),
	}, nil
}

// Play starts the player with audio as its stdin.
func (s *CommandSink) Play(ctx context.Context, audio io.Reader) (speech.Playback, error) {
	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Stdin = audio
	s.logger.Debug("Playing audio", slog.String("player", s.path))
	return startPlayback(cmd)
}
