package gemini

import (
	"errors"
	"strings"

	"hirevoice/interview/internal/config"
)

const defaultModel = "gemini-2.5-flash"

// holds Gemini-specific configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// NewConfig validates the Gemini section of the service config.
func NewConfig(cfg config.GeminiConfig) (*Config, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Config{
		APIKey:      apiKey,
		Model:       model,
		Temperature: 0.2,
	}, nil
}
