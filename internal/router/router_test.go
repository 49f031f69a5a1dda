package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

func TestKeyword_Auto(t *testing.T) {
	tests := []struct {
		intent string
		want   model.DslType
		reason string
	}{
		{model.IntentProcessFlow, model.DslMermaid, "flow/state/process"},
		{"State machine", model.DslMermaid, "flow/state/process"},
		{model.IntentNetworkGraph, model.DslGraphviz, "network/graph/layout"},
		{"page LAYOUT", model.DslGraphviz, "network/graph/layout"},
		{model.IntentUIDiagram, model.DslSVG, "ui/svg/diagram/precise"},
		{"precise drawing", model.DslSVG, "ui/svg/diagram/precise"},
		{"Sales by region", model.DslMermaid, "default"},
		{"", model.DslMermaid, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			dsl, reason := Keyword{}.Route(model.OutputAuto, tt.intent)
			assert.Equal(t, tt.want, dsl)
			assert.Contains(t, reason, tt.reason)
		})
	}
}

func TestKeyword_OverrideIsVerbatim(t *testing.T) {
	for _, mode := range []model.OutputMode{model.OutputMermaid, model.OutputGraphviz, model.OutputSVG} {
		dsl, reason := Keyword{}.Route(mode, model.IntentNetworkGraph)
		assert.Equal(t, model.DslType(mode), dsl)
		assert.Equal(t, ReasonOverride, reason)
	}
}

func TestKeyword_TotalAndNonEmptyReason(t *testing.T) {
	modes := []model.OutputMode{model.OutputAuto, model.OutputMermaid, model.OutputGraphviz, model.OutputSVG}
	intents := []string{"", "flow", "network", "ui", "x", "季度销售额"}
	for _, m := range modes {
		for _, in := range intents {
			dsl, reason := Keyword{}.Route(m, in)
			assert.NotEmpty(t, dsl)
			assert.NotEmpty(t, reason)
		}
	}
}

func TestSVGOnly(t *testing.T) {
	dsl, reason := SVGOnly{}.Route(model.OutputMermaid, model.IntentProcessFlow)
	assert.Equal(t, model.DslSVG, dsl)
	assert.Equal(t, ReasonSVGOnly, reason)
}
