package gemini

import (
	"context"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/llm"
)

// Register Gemini provider on package import
func init() {
	llm.RegisterProvider("gemini", func(cfg config.LLMConfig) (llm.Provider, error) {
		geminiConfig, err := NewConfig(cfg.Gemini)
		if err != nil {
			return nil, err
		}
		return NewClient(context.Background(), geminiConfig)
	})
}
