package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MegaGrindStone/meet-assistant/internal/handlers"
	"github.com/MegaGrindStone/meet-assistant/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider   string                 `yaml:"provider"`
	Model      string                 `yaml:"model"`
	Parameters services.LLMParameters `yaml:"parameters"`
}

type config struct {
	Port      string           `yaml:"port"`
	LogLevel  string           `yaml:"logLevel"`
	LogFormat string           `yaml:"logFormat"`
	LLM       llmConfig        `yaml:"llm"`
	TTS       elevenLabsConfig `yaml:"tts"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
	VisionModel   string `yaml:"visionModel"`
}

type groqConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	VisionModel   string `yaml:"visionModel"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type elevenLabsConfig struct {
	APIKey  string `yaml:"apiKey"`
	BaseURL string `yaml:"baseURL"`
	Model   string `yaml:"model"`
	// AudioCacheFile enables caching synthesized audio in a BoltDB file. A relative path is resolved
	// against the config directory.
	AudioCacheFile string `yaml:"audioCacheFile"`
}

const (
	defaultPort = "8080"

	groqDefaultVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"
	groqDefaultTemperature = 0.7
	groqDefaultMaxTokens   = 1024
	anthropicDefaultTokens = 1024
	openAIDefaultModel     = "gpt-4o-mini"
	anthropicDefaultModel  = "claude-3-5-haiku-latest"
	openRouterDefaultModel = "meta-llama/llama-3.3-70b-instruct"
	defaultOllamaHost      = "http://localhost:11434"
	defaultOllamaModel     = "llama3.2-vision"
	defaultProvider        = "groq"
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port      string           `yaml:"port"`
		LogLevel  string           `yaml:"logLevel"`
		LogFormat string           `yaml:"logFormat"`
		LLM       map[string]any   `yaml:"llm"`
		TTS       elevenLabsConfig `yaml:"tts"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.LogLevel = rawConfig.LogLevel
	c.LogFormat = rawConfig.LogFormat
	c.TTS = rawConfig.TTS

	llm, err := decodeLLMConfig(rawConfig.LLM)
	if err != nil {
		return err
	}
	c.LLM = llm

	return nil
}

// decodeLLMConfig picks the provider configuration named by the "provider" key. An absent llm section
// selects Groq, the provider the assistant was built around.
func decodeLLMConfig(raw map[string]any) (llmConfig, error) {
	llmProvider := defaultProvider
	if raw != nil {
		p, ok := raw["provider"].(string)
		if !ok {
			return nil, fmt.Errorf("llm provider is required")
		}
		llmProvider = p
	}

	llmRawYAML, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "groq":
		llm = &groqConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return nil, err
	}
	return llm, nil
}

func (c *config) applyDefaults() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.LLM == nil {
		c.LLM = &groqConfig{}
	}
	if c.TTS.APIKey == "" {
		c.TTS.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	}
}

func (o ollamaConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	model := o.Model
	if model == "" {
		model = defaultOllamaModel
	}
	ollama, err := services.NewOllama(host, model, o.Parameters, logger)
	if err != nil {
		return nil, err
	}
	return ollama, nil
}

func (o openAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", services.ErrMissingAPIKey)
	}
	model := o.Model
	if model == "" {
		model = openAIDefaultModel
	}
	return services.NewOpenAI(apiKey, o.BaseURL, model, o.VisionModel, o.Parameters, logger), nil
}

func (g groqConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	apiKey := g.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("groq: %w", services.ErrMissingAPIKey)
	}

	model := g.Model
	if model == "" {
		model = services.GroqDefaultModel
	}
	visionModel := g.VisionModel
	if visionModel == "" {
		visionModel = groqDefaultVisionModel
	}

	params := g.Parameters
	if params.Temperature == nil {
		t := float32(groqDefaultTemperature)
		params.Temperature = &t
	}
	if params.MaxTokens == nil {
		n := groqDefaultMaxTokens
		params.MaxTokens = &n
	}

	return services.NewOpenAI(apiKey, services.GroqBaseURL, model, visionModel, params, logger), nil
}

func (o openRouterConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("openrouter: %w", services.ErrMissingAPIKey)
	}
	model := o.Model
	if model == "" {
		model = openRouterDefaultModel
	}
	return services.NewOpenRouter(apiKey, model, "", o.Parameters, logger), nil
}

func (a anthropicConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", services.ErrMissingAPIKey)
	}
	model := a.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	maxTokens := a.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultTokens
	}
	return services.NewAnthropic(apiKey, model, maxTokens, "", a.Parameters, logger), nil
}
