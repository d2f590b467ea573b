package services

// LLMParameters holds the optional sampling parameters shared by every provider. Nil fields are left to
// the provider's defaults.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	MaxTokens   *int     `yaml:"maxTokens"`
	Stop        []string `yaml:"stop"`
	Seed        *int     `yaml:"seed"`
}

const errLoggerKey = "err"

func (p LLMParameters) ollamaOptions() map[string]any {
	opts := make(map[string]any)
	if p.Temperature != nil {
		opts["temperature"] = *p.Temperature
	}
	if p.TopP != nil {
		opts["top_p"] = *p.TopP
	}
	if p.MaxTokens != nil {
		opts["num_predict"] = *p.MaxTokens
	}
	if len(p.Stop) > 0 {
		opts["stop"] = p.Stop
	}
	if p.Seed != nil {
		opts["seed"] = *p.Seed
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func imageDataURL(imageBase64 string) string {
	return "data:image/jpeg;base64," + imageBase64
}
