// Package config provides configuration management for the tarjuman relay.
// Settings come from built-in defaults, an optional YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given explicitly.
const DefaultPath = "tarjuman.yaml"

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	LLM            LLMConfig            `yaml:"llm"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Queue          QueueConfig          `yaml:"queue"`
	CORS           CORSConfig           `yaml:"cors"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// ServerConfig holds settings for the HTTP listener.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout must cover the outbound model call (default: 120s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum size of request headers (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes caps the JSON request body (default: 100KB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LLMConfig describes the external generation service.
type LLMConfig struct {
	// Backend selects the adapter: "responses" (OpenAI Responses API) or "gollm"
	Backend string `yaml:"backend"`

	// Provider is the gollm provider name, used by the gollm backend only
	Provider string `yaml:"provider"`

	// Model is the model name sent with every call
	Model string `yaml:"model"`

	// APIKey is the credential for the generation service.
	// Usually supplied through OPENAI_API_KEY rather than the file.
	APIKey string `yaml:"api_key"`

	// Endpoint is the API base URL for the responses backend. The gollm
	// backend honours it only for the ollama provider.
	Endpoint string `yaml:"endpoint"`

	// ReasoningEffort is passed through to reasoning models (default: low)
	ReasoningEffort string `yaml:"reasoning_effort"`

	// Timeout is the deadline for the outbound call of one translate
	// request (default: 110s). It must stay below server.write_timeout so
	// the error reaches the client before the connection is cut. Zero
	// means no deadline and is only allowed when write_timeout is zero.
	Timeout time.Duration `yaml:"timeout"`

	// MaxInputTokens rejects longer inputs when positive
	MaxInputTokens int `yaml:"max_input_tokens"`

	// Instructions is the fixed instruction template
	Instructions string `yaml:"instructions"`

	// InstructionsVersion labels the template in logs and /health
	InstructionsVersion string `yaml:"instructions_version"`

	// CleanJSON strips markdown code fences from model output before decoding
	CleanJSON bool `yaml:"clean_json"`
}

// RateLimitConfig configures the per-client request cap.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`

	// Algorithm is one of "fixed_window", "token_bucket", "redis"
	Algorithm string `yaml:"algorithm"`

	// Requests is the number of requests allowed per Window
	Requests int `yaml:"requests"`

	Window time.Duration `yaml:"window"`

	// TrustForwardedFor keys clients by the first X-Forwarded-For hop
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`

	// CleanupInterval is how often idle in-memory entries are dropped
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds the shared counter store used by the redis algorithm.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// CircuitBreakerConfig guards the outbound call.
type CircuitBreakerConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxRequests is the number of requests allowed through when half-open
	MaxRequests uint32 `yaml:"max_requests"`

	// Interval is the cyclic period of the closed state for clearing counts
	Interval time.Duration `yaml:"interval"`

	// Timeout is the period of the open state until it becomes half-open
	Timeout time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures needed to trip
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// QueueConfig bounds the number of in-flight translate requests.
type QueueConfig struct {
	Enabled bool  `yaml:"enabled"`
	MaxSize int64 `yaml:"max_size"`
}

// CORSConfig lists the origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// envOverrides lists the environment variables that win over the file.
type envOverrides struct {
	APIKey    string `env:"OPENAI_API_KEY"`
	Port      int    `env:"PORT"`
	Model     string `env:"OPENAI_MODEL"`
	Endpoint  string `env:"OPENAI_BASE_URL"`
	LogLevel  string `env:"LOG_LEVEL"`
	RedisAddr string `env:"REDIS_ADDR"`
}

// DefaultEndpoint is the OpenAI API base URL.
const DefaultEndpoint = "https://api.openai.com/v1"

// DefaultConfig returns the configuration used when nothing overrides it.
// The rate limit and model settings match the original deployment.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			MaxHeaderBytes:  1 << 20,
			MaxBodyBytes:    100 << 10,
			ShutdownTimeout: 30 * time.Second,
		},
		LLM: LLMConfig{
			Backend:             "responses",
			Provider:            "openai",
			Model:               "gpt-5",
			Endpoint:            DefaultEndpoint,
			ReasoningEffort:     "low",
			Timeout:             110 * time.Second,
			Instructions:        DefaultInstructions,
			InstructionsVersion: DefaultInstructionsVersion,
		},
		RateLimit: RateLimitConfig{
			Enabled:         true,
			Algorithm:       "fixed_window",
			Requests:        30,
			Window:          time.Minute,
			CleanupInterval: 2 * time.Minute,
			Redis: RedisConfig{
				Prefix: "tarjuman:ratelimit",
			},
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Queue: QueueConfig{
			Enabled: false,
			MaxSize: 100,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFile loads configuration from a YAML file, then applies .env and
// environment overrides. A missing file is only an error when required.
func LoadFile(filename string, required bool) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return Load(strings.NewReader(""))
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references in the raw
// config text in a single pass. Substituted values are not expanded again.
// "$$" is a literal "$", and a "$" not followed by "{" is kept as is.
func expandEnvVars(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		if s[i] != '$' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case '$':
			b.WriteByte('$')
			i++
		case '{':
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				return "", fmt.Errorf("invalid syntax: unterminated variable reference at offset %d", i)
			}
			b.WriteString(lookupEnv(s[i+2 : i+2+end]))
			i += end + 2
		default:
			b.WriteByte('$')
		}
	}

	return b.String(), nil
}

func lookupEnv(ref string) string {
	if i := strings.Index(ref, ":-"); i >= 0 {
		if val := os.Getenv(ref[:i]); val != "" {
			return val
		}
		return ref[i+2:]
	}
	return os.Getenv(ref)
}

// Load reads YAML from r on top of the defaults, then applies the .env
// file and environment variable overrides, and validates the result.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	config := DefaultConfig()

	if strings.TrimSpace(expanded) != "" {
		dec := yaml.NewDecoder(strings.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

func (c *Config) applyEnv() error {
	var e envOverrides
	if err := env.Parse(&e); err != nil {
		return err
	}

	if e.APIKey != "" {
		c.LLM.APIKey = e.APIKey
	}
	if e.Port != 0 {
		c.Server.Port = e.Port
	}
	if e.Model != "" {
		c.LLM.Model = e.Model
	}
	if e.Endpoint != "" {
		c.LLM.Endpoint = e.Endpoint
	}
	if e.LogLevel != "" {
		c.Logging.Level = e.LogLevel
	}
	if e.RedisAddr != "" {
		c.RateLimit.Redis.Address = e.RedisAddr
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive: %d", c.Server.MaxBodyBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	// LLM validation
	switch c.LLM.Backend {
	case "responses":
		if c.LLM.Endpoint == "" {
			return fmt.Errorf("empty LLM endpoint")
		}
		if c.LLM.APIKey == "" {
			return fmt.Errorf("missing API key: set llm.api_key or OPENAI_API_KEY")
		}
	case "gollm":
		if c.LLM.Provider == "" {
			return fmt.Errorf("empty LLM provider")
		}
		if c.LLM.APIKey == "" && c.LLM.Provider != "ollama" {
			return fmt.Errorf("missing API key for provider %s", c.LLM.Provider)
		}
		if c.LLM.Endpoint != "" && c.LLM.Endpoint != DefaultEndpoint && c.LLM.Provider != "ollama" {
			return fmt.Errorf("llm.endpoint is only supported for the ollama provider on the gollm backend, got provider %s", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("invalid LLM backend: %q", c.LLM.Backend)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("empty LLM model")
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("negative LLM timeout: %v", c.LLM.Timeout)
	}
	if c.Server.WriteTimeout > 0 && (c.LLM.Timeout == 0 || c.LLM.Timeout >= c.Server.WriteTimeout) {
		return fmt.Errorf("llm.timeout (%v) must be set below server.write_timeout (%v)", c.LLM.Timeout, c.Server.WriteTimeout)
	}
	if c.LLM.MaxInputTokens < 0 {
		return fmt.Errorf("negative max input tokens: %d", c.LLM.MaxInputTokens)
	}
	switch c.LLM.ReasoningEffort {
	case "", "minimal", "low", "medium", "high":
	default:
		return fmt.Errorf("invalid reasoning effort: %s", c.LLM.ReasoningEffort)
	}
	if strings.TrimSpace(c.LLM.Instructions) == "" {
		return fmt.Errorf("empty LLM instructions")
	}

	// Rate limit validation
	if c.RateLimit.Enabled {
		switch c.RateLimit.Algorithm {
		case "fixed_window", "token_bucket":
		case "redis":
			if c.RateLimit.Redis.Address == "" {
				return fmt.Errorf("redis rate limiter requires rate_limit.redis.address")
			}
		default:
			return fmt.Errorf("invalid rate limit algorithm: %s", c.RateLimit.Algorithm)
		}
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate limit requests must be positive: %d", c.RateLimit.Requests)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive: %v", c.RateLimit.Window)
		}
	}

	if c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold == 0 {
		return fmt.Errorf("circuit breaker failure threshold must be positive")
	}

	if c.Queue.Enabled && c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue max size must be positive: %d", c.Queue.MaxSize)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
