package translation

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/circuitbreaker"
	"github.com/tarjuman/tarjuman/server/metrics"
)

// Instructions is a versioned instruction template.
type Instructions struct {
	Text    string
	Version string
}

// Translator runs one translation: a single Generator call with the
// current instructions, then decoding of the output.
type Translator struct {
	gen          Generator
	backend      string
	instructions atomic.Pointer[Instructions]
	breaker      *circuitbreaker.CircuitBreaker
	decoder      Decoder
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithInstructions sets the initial instruction template.
func WithInstructions(text, version string) Option {
	return func(t *Translator) {
		t.instructions.Store(&Instructions{Text: text, Version: version})
	}
}

// WithCircuitBreaker guards the Generator call.
func WithCircuitBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(t *Translator) {
		t.breaker = cb
	}
}

// WithMetrics records outcomes and upstream latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Translator) {
		t.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Translator) {
		t.logger = logger
	}
}

// WithDecoder sets the output decoder.
func WithDecoder(d Decoder) Option {
	return func(t *Translator) {
		t.decoder = d
	}
}

// WithBackendName labels upstream metrics and logs.
func WithBackendName(name string) Option {
	return func(t *Translator) {
		t.backend = name
	}
}

// NewTranslator creates a Translator around gen.
func NewTranslator(gen Generator, opts ...Option) *Translator {
	t := &Translator{
		gen:     gen,
		backend: "responses",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.instructions.Load() == nil {
		t.instructions.Store(&Instructions{})
	}
	return t
}

// Instructions returns the template currently in use.
func (t *Translator) Instructions() Instructions {
	return *t.instructions.Load()
}

// InstructionsVersion returns the version label of the current template.
func (t *Translator) InstructionsVersion() string {
	return t.instructions.Load().Version
}

// UpdateInstructions swaps the template for subsequent calls. Calls in
// flight keep the one they started with. It reports whether anything
// changed.
func (t *Translator) UpdateInstructions(text, version string) bool {
	cur := t.instructions.Load()
	if cur.Text == text && cur.Version == version {
		return false
	}
	t.instructions.Store(&Instructions{Text: text, Version: version})
	t.logger.Info("Instructions updated",
		zap.String("from_version", cur.Version),
		zap.String("to_version", version),
	)
	return true
}

// CircuitState returns "closed", "half-open" or "open", or "disabled"
// when there is no breaker.
func (t *Translator) CircuitState() string {
	if t.breaker == nil {
		return "disabled"
	}
	return t.breaker.State().String()
}

// Translate calls the Generator exactly once with text as the only
// variable input. Failures are adapter_error or decode_error values from
// the errors package.
func (t *Translator) Translate(ctx context.Context, text string) (*Result, error) {
	ins := t.instructions.Load()

	var raw string
	call := func() error {
		start := time.Now()
		out, err := t.gen.Generate(ctx, ins.Text, text)
		if t.metrics != nil {
			t.metrics.UpstreamDuration.WithLabelValues(t.backend).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(out) == "" {
			return fmt.Errorf("empty output from %s", t.backend)
		}
		raw = out
		return nil
	}

	var err error
	if t.breaker != nil {
		err = t.breaker.Execute(call)
	} else {
		err = call()
	}

	if err != nil {
		if circuitbreaker.IsOpen(err) {
			t.record(metrics.OutcomeCircuitOpen)
			return nil, errors.NewUnavailableAdapterError("", err)
		}
		t.record(metrics.OutcomeAdapterError)
		return nil, errors.NewAdapterError("", fmt.Errorf("%s call failed: %w", t.backend, err))
	}

	res, err := t.decoder.Decode(raw)
	if err != nil {
		t.record(metrics.OutcomeDecodeError)
		return nil, err
	}

	t.record(metrics.OutcomeSuccess)
	t.logger.Debug("Translation completed",
		zap.String("backend", t.backend),
		zap.String("instructions_version", ins.Version),
		zap.Int("input_runes", len([]rune(text))),
	)
	return res, nil
}

func (t *Translator) record(outcome string) {
	if t.metrics != nil {
		t.metrics.TranslationsTotal.WithLabelValues(outcome).Inc()
	}
}
