// Package codegen produces diagram source for a routed DSL, either from a
// fixed template or by delegating SVG authoring to a chat model.
package codegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/AaronLay10/DiagramEngine/internal/llm"
	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// ErrUnsupportedDSL is returned for a DSL the generator has no template for.
var ErrUnsupportedDSL = errors.New("codegen: unsupported dsl type")

// Generation modes, reported in the codegen step output.
const (
	ModeTemplate  = "template"
	ModeDelegated = "delegated"
)

// Request is the input of one generation.
type Request struct {
	DslType      model.DslType
	Spec         *model.FinalSpec
	Text         string
	RouterReason string
}

// Generator turns a request into a DslDraft.
type Generator struct {
	chat        llm.ChatClient
	temperature float64
}

// Option configures a Generator.
type Option func(*Generator)

// WithChat enables delegated SVG generation through c.
func WithChat(c llm.ChatClient) Option {
	return func(g *Generator) { g.chat = c }
}

// WithTemperature sets the sampling temperature for delegated calls.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

func New(opts ...Option) *Generator {
	g := &Generator{temperature: llm.DefaultTemperature}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Mode reports how dsl would be generated.
func (g *Generator) Mode(dsl model.DslType) string {
	if dsl == model.DslSVG && g.chat != nil {
		return ModeDelegated
	}
	return ModeTemplate
}

// Generate produces the draft for req. Collaborator failures are returned
// as *llm.ConfigError or *llm.ResponseError.
func (g *Generator) Generate(ctx context.Context, req Request) (model.DslDraft, error) {
	if !req.DslType.Valid() {
		return model.DslDraft{}, fmt.Errorf("%w: %q", ErrUnsupportedDSL, req.DslType)
	}

	var code string
	if g.Mode(req.DslType) == ModeDelegated {
		var err error
		code, err = g.delegateSVG(ctx, req.Text)
		if err != nil {
			return model.DslDraft{}, err
		}
	} else {
		code = templates[req.DslType]
	}

	return model.DslDraft{
		DslType: req.DslType,
		Code:    code,
		Meta: model.DraftMeta{
			Title:        titles[req.DslType],
			Editable:     true,
			RouterReason: req.RouterReason,
		},
	}, nil
}

func (g *Generator) delegateSVG(ctx context.Context, text string) (string, error) {
	if text == "" {
		text = DefaultSVGPrompt
	}
	raw, err := g.chat.ChatComplete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: SVGSystemPrompt},
		{Role: llm.RoleUser, Content: text},
	}, g.temperature)
	if err != nil {
		return "", err
	}
	return Sanitize(raw), nil
}
