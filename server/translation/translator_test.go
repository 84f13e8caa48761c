package translation

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap/zaptest"

	"github.com/tarjuman/tarjuman/config"
	"github.com/tarjuman/tarjuman/errors"
	"github.com/tarjuman/tarjuman/server/circuitbreaker"
	"github.com/tarjuman/tarjuman/server/metrics"
	"github.com/tarjuman/tarjuman/server/mocks"
)

const okOutput = `{"casual":"Hi","professional":"Hello."}`

type recordingGenerator struct {
	calls        atomic.Int32
	instructions atomic.Value
	input        atomic.Value
	out          string
	err          error
}

func (g *recordingGenerator) Generate(_ context.Context, instructions, input string) (string, error) {
	g.calls.Add(1)
	g.instructions.Store(instructions)
	g.input.Store(input)
	return g.out, g.err
}

func TestTranslateSuccess(t *testing.T) {
	gen := &recordingGenerator{out: okOutput}
	m := metrics.NewMetrics()
	tr := NewTranslator(gen,
		WithInstructions(config.DefaultInstructions, config.DefaultInstructionsVersion),
		WithMetrics(m),
		WithLogger(zaptest.NewLogger(t)),
	)

	res, err := tr.Translate(context.Background(), "آپ کیسے ہیں؟")
	require.NoError(t, err)

	assert.Equal(t, &Result{Casual: "Hi", Professional: "Hello."}, res)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, config.DefaultInstructions, gen.instructions.Load())
	assert.Equal(t, "آپ کیسے ہیں؟", gen.input.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TranslationsTotal.WithLabelValues(metrics.OutcomeSuccess)))
}

func TestTranslateAdapterErrors(t *testing.T) {
	tests := []struct {
		name     string
		out      string
		err      error
		wantCode int
	}{
		{"network failure", "", stderrors.New("connection refused"), 502},
		{"auth failure", "", &APIError{StatusCode: 401, Message: "bad key"}, 502},
		{"deadline", "", context.DeadlineExceeded, 504},
		{"empty output", "   ", nil, 502},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &recordingGenerator{out: tt.out, err: tt.err}
			m := metrics.NewMetrics()
			tr := NewTranslator(gen, WithInstructions("i", "v1"), WithMetrics(m))

			res, err := tr.Translate(context.Background(), "some urdu text")
			assert.Nil(t, res)

			var te *errors.TarjumanError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, errors.AdapterError, te.Type)
			assert.Equal(t, tt.wantCode, te.Code)
			assert.Equal(t, errors.GenericMessage, te.Message)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
			assert.Equal(t, int32(1), gen.calls.Load(), "no retries")
			assert.Equal(t, float64(1), testutil.ToFloat64(m.TranslationsTotal.WithLabelValues(metrics.OutcomeAdapterError)))
		})
	}
}

func TestTranslateDecodeError(t *testing.T) {
	gen := &recordingGenerator{out: "not json at all"}
	m := metrics.NewMetrics()
	tr := NewTranslator(gen, WithInstructions("i", "v1"), WithMetrics(m))

	_, err := tr.Translate(context.Background(), "some urdu text")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &errors.TarjumanError{Type: errors.DecodeError}))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.TranslationsTotal.WithLabelValues(metrics.OutcomeDecodeError)))
}

func TestTranslateCircuitOpen(t *testing.T) {
	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "test",
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 2,
		TestMode:         true,
	}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	gen := &recordingGenerator{err: stderrors.New("upstream down")}
	tr := NewTranslator(gen, WithInstructions("i", "v1"), WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		_, err := tr.Translate(context.Background(), "some urdu text")
		require.Error(t, err)
	}
	assert.Equal(t, "open", tr.CircuitState())

	_, err = tr.Translate(context.Background(), "some urdu text")
	var te *errors.TarjumanError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, errors.AdapterError, te.Type)
	assert.Equal(t, 503, te.Code)
	assert.Equal(t, int32(2), gen.calls.Load(), "open circuit must not call upstream")
}

func TestTranslateDecodeErrorDoesNotTripBreaker(t *testing.T) {
	cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Name:             "test",
		FailureThreshold: 1,
		Timeout:          time.Minute,
		TestMode:         true,
	}, nil, nil)
	require.NoError(t, err)

	tr := NewTranslator(&recordingGenerator{out: "garbage"}, WithCircuitBreaker(cb))
	_, err = tr.Translate(context.Background(), "some urdu text")
	require.Error(t, err)
	assert.Equal(t, "closed", tr.CircuitState())
}

func TestUpdateInstructions(t *testing.T) {
	gen := &recordingGenerator{out: okOutput}
	tr := NewTranslator(gen, WithInstructions("first", "v1"))

	assert.Equal(t, Instructions{Text: "first", Version: "v1"}, tr.Instructions())
	assert.False(t, tr.UpdateInstructions("first", "v1"))
	assert.True(t, tr.UpdateInstructions("second", "v2"))

	_, err := tr.Translate(context.Background(), "some urdu text")
	require.NoError(t, err)
	assert.Equal(t, "second", gen.instructions.Load())
	assert.Equal(t, "v2", tr.Instructions().Version)
}

func TestCircuitStateDisabled(t *testing.T) {
	tr := NewTranslator(&recordingGenerator{})
	assert.Equal(t, "disabled", tr.CircuitState())
}

func TestGollmGenerator(t *testing.T) {
	mock := mocks.NewMockLLM(func(ctx context.Context, prompt *gollm.Prompt) (string, error) {
		return okOutput, nil
	})
	tr := NewTranslator(NewGollmGeneratorWith(mock),
		WithInstructions("INSTRUCTIONS", "v1"),
		WithBackendName("gollm"),
	)

	res, err := tr.Translate(context.Background(), "آپ کیسے ہیں؟")
	require.NoError(t, err)
	assert.Equal(t, "Hello.", res.Professional)

	prompts := mock.Prompts()
	require.Len(t, prompts, 1)
	require.Len(t, prompts[0].Messages, 2)
	assert.Equal(t, "system", prompts[0].Messages[0].Role)
	assert.Equal(t, "INSTRUCTIONS", prompts[0].Messages[0].Content)
	assert.Equal(t, "user", prompts[0].Messages[1].Role)
	assert.Equal(t, "آپ کیسے ہیں؟", prompts[0].Messages[1].Content)
}
