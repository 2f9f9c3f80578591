package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigError reports a missing or invalid setting detected at startup.
type ConfigError struct {
	Field  string // dotted config key, e.g. "llm.openai_key"
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and that the credentials required by
// the selected providers are present. All problems are returned joined;
// each is a *ConfigError.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ConfigError{Field: "config", Reason: err.Error()}
		}
		for _, fe := range verrs {
			errs = append(errs, &ConfigError{
				Field:  fieldKey(fe.Namespace()),
				Reason: describe(fe),
			})
		}
	}

	errs = append(errs, c.credentialErrors()...)
	return errors.Join(errs...)
}

// credentialErrors reports credentials the configured providers cannot run without.
func (c *Config) credentialErrors() []error {
	var errs []error
	switch c.LLM.Primary {
	case "openai":
		if c.LLM.OpenAIKey == "" && c.LLM.OpenAIBaseURL == "" {
			errs = append(errs, &ConfigError{Field: "llm.openai_key", Reason: "required when llm.primary is openai"})
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			errs = append(errs, &ConfigError{Field: "llm.anthropic_key", Reason: "required when llm.primary is anthropic"})
		}
	case "gemini":
		if c.LLM.GeminiKey == "" {
			errs = append(errs, &ConfigError{Field: "llm.gemini_key", Reason: "required when llm.primary is gemini"})
		}
	case "ollama":
		if c.LLM.OllamaURL == "" {
			errs = append(errs, &ConfigError{Field: "llm.ollama_url", Reason: "required when llm.primary is ollama"})
		}
	}

	switch c.News.Provider {
	case "serpapi":
		if c.News.SerpAPIKey == "" {
			errs = append(errs, &ConfigError{Field: "news.serpapi_key", Reason: "required when news.provider is serpapi"})
		}
	case "finnhub":
		if c.News.FinnhubKey == "" {
			errs = append(errs, &ConfigError{Field: "news.finnhub_key", Reason: "required when news.provider is finnhub"})
		}
	}
	return errs
}

// fieldKey turns "Config.llm.max_tokens" into "llm.max_tokens".
func fieldKey(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_if":
		return "is required when " + strings.Replace(fe.Param(), " ", " is ", 1)
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "url":
		return fmt.Sprintf("must be a URL, got %q", fmt.Sprint(fe.Value()))
	default:
		return fmt.Sprintf("failed %s=%s (value %v)", fe.Tag(), fe.Param(), fe.Value())
	}
}
