// Package validation decodes and checks translate request bodies before
// any call leaves the process.
package validation

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/tarjuman/tarjuman/config"
	"github.com/tarjuman/tarjuman/errors"
)

// TranslationRequest is the body of POST /api/translate. Unknown fields
// are ignored. The length check counts code points after NFC
// normalization.
type TranslationRequest struct {
	UrduText string `json:"urduText" validate:"required,min=5"`
}

// Validator decodes request bodies into TranslationRequest.
type Validator struct {
	validate     *validator.Validate
	maxBodyBytes int64
	tokens       *TokenCounter
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxBodyBytes rejects bodies larger than n bytes.
func WithMaxBodyBytes(n int64) Option {
	return func(v *Validator) {
		v.maxBodyBytes = n
	}
}

// WithTokenCounter enables the input token cap.
func WithTokenCounter(tc *TokenCounter) Option {
	return func(v *Validator) {
		v.tokens = tc
	}
}

// New returns a Validator. Without options there is no body size or
// token limit.
func New(opts ...Option) *Validator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v := &Validator{validate: validate}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// NewFromConfig builds a Validator from the server and LLM settings.
func NewFromConfig(cfg *config.Config) (*Validator, error) {
	opts := []Option{WithMaxBodyBytes(cfg.Server.MaxBodyBytes)}
	if cfg.LLM.MaxInputTokens > 0 {
		tc, err := NewTokenCounter(cfg.LLM.Model, cfg.LLM.MaxInputTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token counter: %w", err)
		}
		opts = append(opts, WithTokenCounter(tc))
	}
	return New(opts...), nil
}

// Decode reads a JSON body and validates it. Every failure is a
// validation_error whose details name the field and a machine code.
func (v *Validator) Decode(r io.Reader) (*TranslationRequest, error) {
	if v.maxBodyBytes > 0 {
		r = io.LimitReader(r, v.maxBodyBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, invalid("body", "invalid_body", "failed to read request body")
	}
	if v.maxBodyBytes > 0 && int64(len(body)) > v.maxBodyBytes {
		return nil, invalid("body", "body_too_large",
			fmt.Sprintf("request body exceeds %d bytes", v.maxBodyBytes))
	}

	var req TranslationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, invalid(typeErr.Field, "invalid_type",
				typeErr.Field+" must be a string")
		}
		return nil, invalid("body", "invalid_json", "request body must be a JSON object")
	}

	req.UrduText = norm.NFC.String(req.UrduText)

	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, invalid(fe.Field(), fe.Tag(), fieldMessage(fe))
		}
		return nil, invalid("body", "invalid", err.Error())
	}

	if v.tokens != nil {
		if err := v.tokens.Check(req.UrduText); err != nil {
			return nil, invalid("urduText", "token_limit_exceeded", err.Error())
		}
	}

	return &req, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func invalid(field, code, message string) *errors.TarjumanError {
	return errors.NewValidationError("", "Invalid request", map[string]interface{}{
		"field":   field,
		"code":    code,
		"message": message,
	})
}
