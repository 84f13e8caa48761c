// Package translation turns Urdu text into the casual and professional
// English renderings. A Generator makes the single outbound model call;
// the Translator wraps it with the instruction template, the circuit
// breaker and output decoding.
package translation

import (
	"context"
	"fmt"

	"github.com/tarjuman/tarjuman/config"
)

// Generator makes one call to a text generation service. instructions is
// the fixed template and input is the user's text, passed separately.
type Generator interface {
	Generate(ctx context.Context, instructions, input string) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, instructions, input string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, instructions, input string) (string, error) {
	return f(ctx, instructions, input)
}

// NewGenerator builds the Generator selected by cfg.Backend.
func NewGenerator(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Backend {
	case "", "responses":
		return NewResponsesClient(cfg, nil), nil
	case "gollm":
		return NewGollmGenerator(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM backend: %s", cfg.Backend)
	}
}
