package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"

	"github.com/tarjuman/tarjuman/config"
)

// APIError is a non-2xx answer from the generation service.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string

	err error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.IsAuth() {
		return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, msg)
	}
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, msg)
}

func (e *APIError) Unwrap() error { return e.err }

// IsAuth reports whether the service rejected the credentials.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// ResponsesClient calls the OpenAI Responses API through the official SDK.
type ResponsesClient struct {
	client openai.Client
	model  string
	effort string
}

// NewResponsesClient creates a client for cfg. The SDK retries failed
// calls by default; that is turned off so one translate request is one
// outbound call. The call deadline comes from the request context, so a
// nil httpClient gets one without its own timeout.
func NewResponsesClient(cfg config.LLMConfig, httpClient *http.Client) *ResponsesClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}
	return &ResponsesClient{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(strings.TrimRight(endpoint, "/")+"/"),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		),
		model:  cfg.Model,
		effort: cfg.ReasoningEffort,
	}
}

// Generate implements Generator.
func (c *ResponsesClient) Generate(ctx context.Context, instructions, input string) (string, error) {
	params := responses.ResponseNewParams{
		Model:        shared.ResponsesModel(c.model),
		Instructions: openai.String(instructions),
		Input:        responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	if c.effort != "" {
		params.Reasoning = shared.ReasoningParam{Effort: shared.ReasoningEffort(c.effort)}
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &APIError{
				StatusCode: apiErr.StatusCode,
				Type:       apiErr.Type,
				Code:       apiErr.Code,
				Message:    apiErr.Message,
				err:        err,
			}
		}
		return "", fmt.Errorf("request failed: %w", err)
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty response from API")
	}
	return text, nil
}
