package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken does not know about.
const fallbackEncoding = "cl100k_base"

// Tokenizer counts tokens in a piece of text.
type Tokenizer interface {
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	return len(t.Encode(text, nil, nil))
}

// TokenCounter checks input text against a token budget.
type TokenCounter struct {
	encoding Tokenizer
	max      int
}

// NewTokenCounter creates a counter using the encoding for model. Unknown
// models fall back to cl100k_base.
func NewTokenCounter(model string, max int) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}, max: max}, nil
}

// NewTokenCounterWith builds a counter around an existing tokenizer.
func NewTokenCounterWith(t Tokenizer, max int) *TokenCounter {
	return &TokenCounter{encoding: t, max: max}
}

// Count returns the number of tokens in text.
func (tc *TokenCounter) Count(text string) int {
	return tc.encoding.CountTokens(text)
}

// Check reports an error when text is over the budget.
func (tc *TokenCounter) Check(text string) error {
	if tc.max <= 0 {
		return nil
	}
	if n := tc.Count(text); n > tc.max {
		return fmt.Errorf("input has %d tokens, limit is %d", n, tc.max)
	}
	return nil
}
