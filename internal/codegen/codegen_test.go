package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/DiagramEngine/internal/llm"
	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// recordingChat captures the last request and replies with reply/err.
type recordingChat struct {
	reply       string
	err         error
	msgs        []llm.Message
	temperature float64
	calls       int
}

func (c *recordingChat) ChatComplete(ctx context.Context, msgs []llm.Message, temperature float64) (string, error) {
	c.calls++
	c.msgs = msgs
	c.temperature = temperature
	return c.reply, c.err
}

func TestGenerate_GraphvizTemplate(t *testing.T) {
	draft, err := New().Generate(context.Background(), Request{
		DslType:      model.DslGraphviz,
		RouterReason: "intent matched network/graph/layout keywords",
	})
	require.NoError(t, err)
	assert.Equal(t, "digraph G { A -> B; }", draft.Code)
	assert.Equal(t, model.DslGraphviz, draft.DslType)
	assert.True(t, draft.Meta.Editable)
	assert.Equal(t, "intent matched network/graph/layout keywords", draft.Meta.RouterReason)
}

func TestGenerate_TemplatesAreDeterministic(t *testing.T) {
	g := New()
	for _, dsl := range []model.DslType{model.DslMermaid, model.DslGraphviz, model.DslSVG} {
		a, err := g.Generate(context.Background(), Request{DslType: dsl})
		require.NoError(t, err)
		b, _ := g.Generate(context.Background(), Request{DslType: dsl, Text: "different text"})
		assert.Equal(t, a.Code, b.Code)
		assert.NotEmpty(t, a.Code)
		assert.Equal(t, ModeTemplate, g.Mode(dsl))
	}
}

func TestGenerate_UnsupportedDSL(t *testing.T) {
	_, err := New().Generate(context.Background(), Request{DslType: "plantuml"})
	assert.ErrorIs(t, err, ErrUnsupportedDSL)
}

func TestGenerate_DelegatedSVG(t *testing.T) {
	chat := &recordingChat{reply: "Here you go:\n```svg\n<svg width=\"10\" height=\"10\"><rect/></svg>\n```"}
	g := New(WithChat(chat), WithTemperature(0.3))

	draft, err := g.Generate(context.Background(), Request{DslType: model.DslSVG, Text: "a red square"})
	require.NoError(t, err)

	assert.Equal(t, `<svg width="10" height="10"><rect/></svg>`, draft.Code)
	assert.Equal(t, ModeDelegated, g.Mode(model.DslSVG))
	require.Len(t, chat.msgs, 2)
	assert.Equal(t, llm.RoleSystem, chat.msgs[0].Role)
	assert.Equal(t, SVGSystemPrompt, chat.msgs[0].Content)
	assert.Equal(t, "a red square", chat.msgs[1].Content)
	assert.InDelta(t, 0.3, chat.temperature, 1e-9)
}

func TestGenerate_DelegatedDefaultPrompt(t *testing.T) {
	chat := &recordingChat{reply: "<svg></svg>"}
	_, err := New(WithChat(chat)).Generate(context.Background(), Request{DslType: model.DslSVG})
	require.NoError(t, err)
	assert.Equal(t, DefaultSVGPrompt, chat.msgs[1].Content)
	assert.InDelta(t, llm.DefaultTemperature, chat.temperature, 1e-9)
}

func TestGenerate_ChatOnlyUsedForSVG(t *testing.T) {
	chat := &recordingChat{reply: "<svg></svg>"}
	draft, err := New(WithChat(chat)).Generate(context.Background(), Request{DslType: model.DslMermaid})
	require.NoError(t, err)
	assert.Zero(t, chat.calls)
	assert.Contains(t, draft.Code, "graph TD")
}

func TestGenerate_PropagatesCollaboratorErrors(t *testing.T) {
	cfgErr := &llm.ConfigError{Setting: "api_key", Msg: "credential for siliconflow is not set"}
	_, err := New(WithChat(&recordingChat{err: cfgErr})).Generate(context.Background(), Request{DslType: model.DslSVG})

	var got *llm.ConfigError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "api_key", got.Setting)
}
