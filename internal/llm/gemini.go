package llm

import (
	"context"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient calls the Gemini API. System messages become the system
// instruction; assistant turns are sent with the "model" role.
type GeminiClient struct {
	settings Settings
	cli      *genai.Client
}

var _ ChatClient = (*GeminiClient)(nil)

// NewGemini creates the client. Without a credential the returned client
// fails every call with a ConfigError.
func NewGemini(ctx context.Context, s Settings) (*GeminiClient, error) {
	s.Provider = ProviderGemini
	s = s.WithDefaults()
	if s.APIKey == "" {
		return &GeminiClient{settings: s}, nil
	}
	cfg := &genai.ClientConfig{APIKey: s.APIKey, Backend: genai.BackendGeminiAPI}
	if s.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: s.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, &ConfigError{Setting: "llm", Msg: "create gemini client: " + err.Error()}
	}
	return &GeminiClient{settings: s, cli: cli}, nil
}

func (g *GeminiClient) ChatComplete(ctx context.Context, msgs []Message, temperature float64) (string, error) {
	if g.cli == nil {
		return "", &ConfigError{Setting: "api_key", Msg: "credential for gemini is not set"}
	}

	var system []*genai.Part
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, &genai.Part{Text: m.Content})
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	ctx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(ctx, g.settings.Model, contents, cfg)
	if err != nil {
		err = &ResponseError{Provider: ProviderGemini, Msg: "generate content failed", Err: err}
		observe(g.settings, start, err)
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		err := &ResponseError{Provider: ProviderGemini, Msg: "response has no candidates"}
		observe(g.settings, start, err)
		return "", err
	}
	observe(g.settings, start, nil)

	var text string
	for _, p := range resp.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}
