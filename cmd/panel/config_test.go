package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/meet-assistant/internal/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, "http://localhost:8080/api/ai/chat", cfg.Backend.ChatURL)
	assert.Equal(t, "http://localhost:8080/api/tts", cfg.Backend.TTSURL)
	assert.Equal(t, defaultAgentName, cfg.Agent.AgentName)
	assert.True(t, cfg.Agent.AutoSpeak)
	assert.False(t, cfg.Agent.Vision)
	assert.True(t, cfg.Speech.RemoteEnabled)
	assert.Equal(t, device.DefaultSinkArgs, cfg.Devices.Player.Args)
	assert.True(t, cfg.Devices.Screen.Enabled)
	assert.False(t, cfg.Devices.Camera.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "panel.yaml")
	raw := `
port: "4000"
backend:
  chatURL: http://backend/api/ai/chat
  ttsURL: ""
agent:
  agentName: Ada
  agentInstructions: Be brief.
  autoSpeak: false
  vision: true
speech:
  preferredVoices: [Alex]
capture:
  maxWidth: 640
  playableTimeout: 2s
devices:
  recognizer:
    command: vosk-stream
    args: [--lang, en]
  camera:
    enabled: true
    input: [-f, v4l2, -i, /dev/video2]
  frameFiles: [/tmp/meeting.png]
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Port)
	assert.Equal(t, "http://backend/api/ai/chat", cfg.Backend.ChatURL)
	assert.Empty(t, cfg.Backend.TTSURL)
	assert.Equal(t, "Ada", cfg.Agent.AgentName)
	assert.Equal(t, "Be brief.", cfg.Agent.AgentInstructions)
	assert.False(t, cfg.Agent.AutoSpeak)
	assert.True(t, cfg.Agent.Vision)
	assert.Equal(t, []string{"Alex"}, cfg.Speech.PreferredVoices)
	assert.Equal(t, "en", cfg.Speech.Language)
	assert.Equal(t, 640, cfg.Capture.MaxWidth)
	assert.Equal(t, 2*time.Second, cfg.Capture.PlayableTimeout)
	assert.Equal(t, "vosk-stream", cfg.Devices.Recognizer.Command)
	assert.Equal(t, []string{"--lang", "en"}, cfg.Devices.Recognizer.Args)
	assert.True(t, cfg.Devices.Camera.Enabled)
	assert.Equal(t, []string{"-f", "v4l2", "-i", "/dev/video2"}, cfg.Devices.Camera.Input)
	assert.Equal(t, []string{"/tmp/meeting.png"}, cfg.Devices.FrameFiles)
	assert.Equal(t, defaultSynthesizer, cfg.Devices.Synthesizer)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0600))
	_, err := loadConfig(empty)
	assert.NoError(t, err)

	noInstructions := filepath.Join(dir, "agent.yaml")
	require.NoError(t, os.WriteFile(noInstructions, []byte("agent:\n  agentInstructions: \"\"\n"), 0600))
	_, err = loadConfig(noInstructions)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("port: [\n"), 0600))
	_, err = loadConfig(broken)
	assert.Error(t, err)
}

func TestDevicesDisabled(t *testing.T) {
	logger := discardLogger()
	cfg := devicesConfig{}

	assert.Nil(t, newRecognizer(cfg, logger))
	assert.Nil(t, newSynthesizer(cfg, logger))
	assert.Nil(t, newSink(cfg, logger))
	assert.Nil(t, newCamera(cfg, logger))
	assert.Nil(t, newScreen(cfg, logger))

	missing := devicesConfig{
		Recognizer: commandConfig{Command: "meet-assistant-no-such-recognizer"},
		Player:     commandConfig{Command: "meet-assistant-no-such-player"},
		FFmpeg:     "meet-assistant-no-such-ffmpeg",
		Camera:     videoConfig{Enabled: true},
		Screen:     videoConfig{Enabled: true},
	}
	assert.Nil(t, newRecognizer(missing, logger))
	assert.Nil(t, newSink(missing, logger))
	assert.Nil(t, newCamera(missing, logger))
	assert.Nil(t, newScreen(missing, logger))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
