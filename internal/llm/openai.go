package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// SiliconFlow is the default.
type OpenAIClient struct {
	settings Settings
	client   openai.Client
}

var _ ChatClient = (*OpenAIClient)(nil)

func NewOpenAI(s Settings) *OpenAIClient {
	s = s.WithDefaults()
	base := s.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	opts := []option.RequestOption{
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(s.Timeout),
	}
	if s.APIKey != "" {
		opts = append(opts, option.WithAPIKey(s.APIKey))
	}
	return &OpenAIClient{settings: s, client: openai.NewClient(opts...)}
}

func (o *OpenAIClient) ChatComplete(ctx context.Context, msgs []Message, temperature float64) (string, error) {
	if o.settings.APIKey == "" {
		return "", &ConfigError{Setting: "api_key", Msg: "credential for " + o.settings.Provider + " is not set"}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.settings.Model),
		Messages:    toOpenAIMessages(msgs),
		Temperature: openai.Float(temperature),
	}

	ctx, cancel := context.WithTimeout(ctx, o.settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = o.wrap(err)
		observe(o.settings, start, err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		err := &ResponseError{Provider: o.settings.Provider, Msg: "response has no choices"}
		observe(o.settings, start, err)
		return "", err
	}
	observe(o.settings, start, nil)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (o *OpenAIClient) wrap(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &ResponseError{Provider: o.settings.Provider, StatusCode: apiErr.StatusCode, Msg: "request failed", Err: err}
	}
	return &ResponseError{Provider: o.settings.Provider, Msg: "request failed", Err: err}
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
