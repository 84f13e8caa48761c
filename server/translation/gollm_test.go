package translation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarjuman/tarjuman/config"
)

func newOllamaTestGenerator(t *testing.T, handler http.HandlerFunc) *GollmGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gen, err := NewGollmGenerator(config.LLMConfig{
		Backend:  "gollm",
		Provider: "ollama",
		Model:    "llama3",
		Endpoint: srv.URL,
	})
	require.NoError(t, err)
	return gen
}

func TestGollmGeneratorOllamaEndpoint(t *testing.T) {
	var (
		hits    atomic.Int32
		gotPath string
		gotBody map[string]interface{}
	)
	gen := newOllamaTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"model":"llama3","response":"{\"casual\":\"Hi\",","done":false}
{"model":"llama3","response":"\"professional\":\"Hello.\"}","done":true}`))
	})

	out, err := gen.Generate(context.Background(), "INSTRUCTIONS", "آپ کیسے ہیں؟")
	require.NoError(t, err)

	assert.Equal(t, okOutput, out)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, "/api/generate", gotPath)
	assert.Equal(t, "llama3", gotBody["model"])
}

func TestGollmGeneratorSingleCallOnFailure(t *testing.T) {
	var hits atomic.Int32
	gen := newOllamaTestGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	start := time.Now()
	_, err := gen.Generate(context.Background(), "i", "input")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load(), "failed call must not be retried")
	assert.Less(t, time.Since(start), 2*time.Second, "no backoff between attempts")
}

func TestGollmGeneratorEndpointOnlyForOllama(t *testing.T) {
	_, err := NewGollmGenerator(config.LLMConfig{
		Backend:  "gollm",
		Provider: "openai",
		Model:    "gpt-5",
		APIKey:   "sk-test",
		Endpoint: "https://llm.internal/v1",
	})
	assert.ErrorIs(t, err, ErrEndpointUnsupported)

	gen, err := NewGollmGenerator(config.LLMConfig{
		Backend:  "gollm",
		Provider: "openai",
		Model:    "gpt-5",
		APIKey:   "sk-test",
		Endpoint: config.DefaultEndpoint,
	})
	require.NoError(t, err)
	assert.NotNil(t, gen)
}
