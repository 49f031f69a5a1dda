// Package llm is the text-generation collaborator: a synchronous,
// non-streaming chat completion behind the ChatClient interface.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatClient completes a conversation and returns the reply text.
type ChatClient interface {
	ChatComplete(ctx context.Context, msgs []Message, temperature float64) (string, error)
}

// Func adapts a function to ChatClient.
type Func func(ctx context.Context, msgs []Message, temperature float64) (string, error)

func (f Func) ChatComplete(ctx context.Context, msgs []Message, temperature float64) (string, error) {
	return f(ctx, msgs, temperature)
}

// Providers.
const (
	ProviderSiliconFlow = "siliconflow"
	ProviderOpenAI      = "openai"
	ProviderGemini      = "gemini"
)

// Defaults for the OpenAI-compatible endpoint.
const (
	DefaultBaseURL     = "https://api.siliconflow.cn/v1"
	DefaultModel       = "Qwen/Qwen3-Coder-480B-A35B-Instruct"
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultTimeout     = 120 * time.Second
	DefaultTemperature = 0.2
)

// Settings configure a provider client.
type Settings struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// WithDefaults fills unset fields for the settings' provider.
func (s Settings) WithDefaults() Settings {
	if s.Provider == "" {
		s.Provider = ProviderSiliconFlow
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultTimeout
	}
	switch s.Provider {
	case ProviderGemini:
		if s.Model == "" {
			s.Model = DefaultGeminiModel
		}
	default:
		if s.BaseURL == "" {
			s.BaseURL = DefaultBaseURL
		}
		if s.Model == "" {
			s.Model = DefaultModel
		}
	}
	return s
}

// New builds the client for s.Provider. A missing credential is not an
// error here; it is reported by the first ChatComplete call.
func New(ctx context.Context, s Settings) (ChatClient, error) {
	s = s.WithDefaults()
	switch strings.ToLower(s.Provider) {
	case ProviderSiliconFlow, ProviderOpenAI:
		return NewOpenAI(s), nil
	case ProviderGemini:
		return NewGemini(ctx, s)
	}
	return nil, &ConfigError{Setting: "llm.provider", Msg: fmt.Sprintf("unsupported provider %q", s.Provider)}
}
