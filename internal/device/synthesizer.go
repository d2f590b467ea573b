package device

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/MegaGrindStone/meet-assistant/internal/speech"
)

// CommandSynthesizer speaks with the host's speech engine: espeak-ng on Linux, say on macOS.
type CommandSynthesizer struct {
	path   string
	engine string

	logger *slog.Logger
}

const (
	engineEspeak = "espeak-ng"
	engineSay    = "say"

	// Words per minute at rate 1.
	baseWordsPerMinute = 175
)

var sayVoiceRe = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// NewCommandSynthesizer returns a synthesizer running name, which has to be espeak-ng, espeak or say.
func NewCommandSynthesizer(name string, logger *slog.Logger) (*CommandSynthesizer, error) {
	engine := filepath.Base(name)
	switch engine {
	case engineEspeak, "espeak":
		engine = engineEspeak
	case engineSay:
	default:
		return nil, fmt.Errorf("unsupported speech engine %q", name)
	}

	path, err := lookPath(name)
	if err != nil {
		return nil, err
	}
	return &CommandSynthesizer{
		path:   path,
		engine: engine,
		logger: logger.With(slog.String("module", "synthesizer")),
	}, nil
}

// Voices lists the voices the engine offers.
func (s *CommandSynthesizer) Voices(ctx context.Context) ([]speech.Voice, error) {
	args := []string{"--voices"}
	parse := ParseEspeakVoices
	if s.engine == engineSay {
		args = []string{"-v", "?"}
		parse = ParseSayVoices
	}

	out, err := exec.CommandContext(ctx, s.path, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list voices: %w", err)
	}
	return parse(string(out)), nil
}

// Speak starts speaking u. The returned playback ends when the engine exits.
func (s *CommandSynthesizer) Speak(ctx context.Context, u speech.Utterance) (speech.Playback, error) {
	cmd := exec.CommandContext(ctx, s.path, s.args(u)...)
	cmd.Stdin = strings.NewReader(u.Text)
	s.logger.Debug("Speaking", slog.String("voice", u.Voice.Name), slog.Int("length", len(u.Text)))
	return startPlayback(cmd)
}

func (s *CommandSynthesizer) args(u speech.Utterance) []string {
	var args []string
	if u.Voice.Name != "" {
		args = append(args, "-v", u.Voice.Name)
	}
	if u.Rate > 0 {
		wpm := strconv.Itoa(int(u.Rate * baseWordsPerMinute))
		if s.engine == engineSay {
			args = append(args, "-r", wpm)
		} else {
			args = append(args, "-s", wpm)
		}
	}
	if s.engine == engineEspeak {
		if u.Pitch > 0 {
			args = append(args, "-p", strconv.Itoa(min(int(u.Pitch*50), 99)))
		}
		if u.Volume > 0 {
			args = append(args, "-a", strconv.Itoa(min(int(u.Volume*100), 200)))
		}
	}
	// The text is read from stdin so that it is never taken for a flag.
	if s.engine == engineEspeak {
		args = append(args, "--stdin")
	}
	return args
}

// ParseEspeakVoices decodes the table printed by "espeak-ng --voices".
func ParseEspeakVoices(out string) []speech.Voice {
	var voices []speech.Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, speech.Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}

// ParseSayVoices decodes the list printed by "say -v ?". Languages are reported as BCP 47 tags.
func ParseSayVoices(out string) []speech.Voice {
	var voices []speech.Voice
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		voices = append(voices, speech.Voice{
			Name: strings.TrimSpace(m[1]),
			Lang: strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}
