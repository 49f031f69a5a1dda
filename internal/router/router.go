// Package router picks the diagram language for a scene.
package router

import (
	"strings"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// Router maps an output mode and intent to a DSL and an audit reason.
type Router interface {
	Route(mode model.OutputMode, intent string) (model.DslType, string)
}

// ReasonOverride is reported when the caller forced a DSL.
const ReasonOverride = "user override"

type rule struct {
	dsl      model.DslType
	keywords []string
}

// Priority order; the first rule with a matching keyword wins.
var rules = []rule{
	{model.DslMermaid, []string{"flow", "state", "process"}},
	{model.DslGraphviz, []string{"network", "graph", "layout"}},
	{model.DslSVG, []string{"ui", "svg", "diagram", "precise"}},
}

// Keyword classifies intents by substring.
type Keyword struct{}

var _ Router = Keyword{}

// Route returns mode verbatim for anything but auto. Otherwise the intent
// is matched case-insensitively against the rules, defaulting to mermaid.
func (Keyword) Route(mode model.OutputMode, intent string) (model.DslType, string) {
	if mode != model.OutputAuto {
		return model.DslType(mode), ReasonOverride
	}
	lower := strings.ToLower(intent)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.dsl, "intent matched " + strings.Join(r.keywords, "/") + " keywords"
			}
		}
	}
	return model.DslMermaid, "no keyword matched, default mermaid"
}

// SVGOnly always routes to svg. It backs the legacy svg-only pipeline.
type SVGOnly struct{}

var _ Router = SVGOnly{}

// ReasonSVGOnly is reported by SVGOnly.
const ReasonSVGOnly = "svg-only pipeline"

func (SVGOnly) Route(mode model.OutputMode, intent string) (model.DslType, string) {
	return model.DslSVG, ReasonSVGOnly
}
