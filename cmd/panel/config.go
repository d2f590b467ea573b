package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MegaGrindStone/meet-assistant/internal/capture"
	"github.com/MegaGrindStone/meet-assistant/internal/chat"
	"github.com/MegaGrindStone/meet-assistant/internal/device"
	"github.com/MegaGrindStone/meet-assistant/internal/speech"
	"gopkg.in/yaml.v3"
)

type config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
	// CodeStyle is the chroma style used to highlight code blocks in replies.
	CodeStyle string `yaml:"codeStyle"`

	Backend backendConfig       `yaml:"backend"`
	Agent   chat.Config         `yaml:"agent"`
	Speech  speech.PlayerConfig `yaml:"speech"`
	Capture capture.Config      `yaml:"capture"`
	Devices devicesConfig       `yaml:"devices"`
}

type backendConfig struct {
	ChatURL string `yaml:"chatURL"`
	TTSURL  string `yaml:"ttsURL"`
	VoiceID string `yaml:"voiceID"`
}

type commandConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type videoConfig struct {
	Enabled bool `yaml:"enabled"`
	// Input holds the ffmpeg input arguments. Empty selects the platform default device.
	Input []string `yaml:"input"`
}

type devicesConfig struct {
	// Recognizer is a speech engine printing "partial:" and "final:" lines. Voice input is disabled when
	// no command is set.
	Recognizer  commandConfig `yaml:"recognizer"`
	Synthesizer string        `yaml:"synthesizer"`
	Player      commandConfig `yaml:"player"`
	FFmpeg      string        `yaml:"ffmpeg"`
	Camera      videoConfig   `yaml:"camera"`
	Screen      videoConfig   `yaml:"screen"`
	// FrameFiles are snapshot images of the meeting, tried in order before the screen.
	FrameFiles []string `yaml:"frameFiles"`
}

const (
	defaultPort              = "3000"
	defaultBackendURL        = "http://localhost:8080"
	defaultAgentName         = "Assistant"
	defaultAgentInstructions = "You are a helpful meeting assistant. Keep your answers short and to the point."
	defaultSynthesizer       = "espeak-ng"
	defaultPlayer            = "ffplay"
	defaultFFmpeg            = "ffmpeg"
	defaultCodeStyle         = "monokai"
)

func defaultConfig() config {
	return config{
		Port:      defaultPort,
		CodeStyle: defaultCodeStyle,
		Backend: backendConfig{
			ChatURL: defaultBackendURL + "/api/ai/chat",
			TTSURL:  defaultBackendURL + "/api/tts",
		},
		Agent: chat.Config{
			AgentName:         defaultAgentName,
			AgentInstructions: defaultAgentInstructions,
			AutoSpeak:         true,
		},
		Speech:  speech.DefaultPlayerConfig(),
		Capture: capture.DefaultConfig(),
		Devices: devicesConfig{
			Synthesizer: defaultSynthesizer,
			Player:      commandConfig{Command: defaultPlayer, Args: device.DefaultSinkArgs},
			FFmpeg:      defaultFFmpeg,
			Screen:      videoConfig{Enabled: true},
		},
	}
}

// loadConfig decodes the file at path over the defaults. A missing file yields the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	cfgFile, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("error opening config file: %w", err)
	}
	defer cfgFile.Close()

	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("error decoding config file: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c config) validate() error {
	if c.Backend.ChatURL == "" {
		return fmt.Errorf("backend chatURL is required")
	}
	if c.Agent.AgentInstructions == "" {
		return fmt.Errorf("agent instructions are required")
	}
	return nil
}
