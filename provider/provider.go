package provider

import (
	"context"
	"fmt"

	"github.com/jatanrathod13/researcher/config"
	openaiprovider "github.com/jatanrathod13/researcher/provider/openai"
)

// LLMProvider is the contract to the external completion engine.
type LLMProvider interface {
	// Generate runs a completion with a system and user prompt against model.
	Generate(ctx context.Context, system, user, model string) (string, error)

	// GenerateWithTokens runs a completion and reports input/output token usage.
	GenerateWithTokens(ctx context.Context, system, user, model string) (string, int64, int64, error)
}

type Type string

const (
	OpenAI Type = "openai"
)

// NewProvider builds an LLM provider from configuration.
func NewProvider(t Type, cfg config.LLMConfig) (LLMProvider, error) {
	switch t {
	case OpenAI:
		return openaiprovider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", t)
	}
}
