package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"

	"github.com/tarjuman/tarjuman/config"
)

// GollmGenerator calls any provider gollm supports. Instructions go in a
// system message and the user's text in a user message.
type GollmGenerator struct {
	llm gollm.LLM
}

// ErrEndpointUnsupported is returned when an endpoint is configured for a
// gollm provider whose URL is fixed inside gollm.
var ErrEndpointUnsupported = errors.New("llm.endpoint is only supported for the ollama provider on the gollm backend")

// NewGollmGenerator creates the gollm client described by cfg. gollm's own
// retry loop is switched off so a translate request makes exactly one
// outbound call, and its stderr logger is silenced in favour of ours.
func NewGollmGenerator(cfg config.LLMConfig) (*GollmGenerator, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
		gollm.SetMaxRetries(0),
		gollm.SetLogLevel(gollm.LogLevelOff),
	}
	if cfg.Endpoint != "" && cfg.Endpoint != config.DefaultEndpoint {
		if cfg.Provider != "ollama" {
			return nil, fmt.Errorf("%w, got provider %s", ErrEndpointUnsupported, cfg.Provider)
		}
		opts = append(opts, gollm.SetOllamaEndpoint(strings.TrimRight(cfg.Endpoint, "/")))
	}

	llm, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm client for %s: %w", cfg.Provider, err)
	}
	if cfg.ReasoningEffort != "" && cfg.Provider != "ollama" {
		llm.SetOption("reasoning_effort", cfg.ReasoningEffort)
	}

	return &GollmGenerator{llm: llm}, nil
}

// NewGollmGeneratorWith wraps an existing client.
func NewGollmGeneratorWith(llm gollm.LLM) *GollmGenerator {
	return &GollmGenerator{llm: llm}
}

// Generate implements Generator.
func (g *GollmGenerator) Generate(ctx context.Context, instructions, input string) (string, error) {
	prompt := &gollm.Prompt{
		Messages: []gollm.PromptMessage{
			{Role: "system", Content: instructions},
			{Role: "user", Content: input},
		},
	}
	return g.llm.Generate(ctx, prompt)
}
