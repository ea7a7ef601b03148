package web_search

import (
	"context"
	"fmt"

	"github.com/jatanrathod13/researcher/config"
	"github.com/jatanrathod13/researcher/tools/web_search/brave"
	"github.com/jatanrathod13/researcher/tools/web_search/models"
	"github.com/jatanrathod13/researcher/tools/web_search/serper"
)

// WebSearcher is the read-only web search capability boundary: ranked
// snippets in, no side effects.
type WebSearcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// FromConfig picks whichever search provider has a key configured, preferring
// Brave.
func FromConfig(cfg config.SearchConfig) (WebSearcher, error) {
	if cfg.BraveAPIKey != "" {
		return NewWebSearcher(BraveProvider, cfg.BraveAPIKey)
	}
	if cfg.SerperAPIKey != "" {
		return NewWebSearcher(SerperProvider, cfg.SerperAPIKey)
	}
	return nil, fmt.Errorf("no web search provider configured (set BRAVE_SEARCH_KEY or SERPER_API_KEY)")
}
