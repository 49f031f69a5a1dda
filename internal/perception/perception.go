// Package perception turns raw text and image references into a SceneSpec.
package perception

import (
	"context"
	"strings"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// Perceiver classifies a request into a scene.
type Perceiver interface {
	Perceive(ctx context.Context, text string, images []model.ImageRef) (model.SceneSpec, error)
}

// StubConfidence is reported by RuleBased for every scene.
const StubConfidence = 0.85

// Maximum runes kept from a freeform intent label.
const maxFreeformIntent = 20

type family struct {
	intent   string
	keywords []string
}

// Checked in order; the first family with a matching keyword wins.
var textFamilies = []family{
	{model.IntentProcessFlow, []string{"flow", "process", "workflow"}},
	{model.IntentNetworkGraph, []string{"network", "graph", "connection"}},
	{model.IntentUIDiagram, []string{"ui", "interface", "layout"}},
}

var imageFamilies = []family{
	{model.IntentProcessFlow, []string{"flow"}},
	{model.IntentNetworkGraph, []string{"network"}},
	{model.IntentUIDiagram, []string{"ui", "svg"}},
}

// RuleBased classifies by keyword and always emits the three-node chain
// 开始 → 处理 → 结束. It makes no network calls.
type RuleBased struct{}

var _ Perceiver = RuleBased{}

func (RuleBased) Perceive(ctx context.Context, text string, images []model.ImageRef) (model.SceneSpec, error) {
	intent := model.IntentProcessFlow
	if text != "" {
		intent = classifyText(text)
	}
	// Only the first reference is consulted; an empty URL there means no
	// override even when later images carry one.
	if len(images) > 0 {
		if matched, hit := match(imageFamilies, images[0].URL); hit {
			intent = matched
		}
	}

	scene := model.SceneSpec{
		Intent:       intent,
		Entities:     chainEntities(),
		Relations:    chainRelations(),
		MissingSlots: []string{},
		Confidence:   StubConfidence,
	}
	if intent == model.IntentProcessFlow {
		scene.MissingSlots = []string{"参数", "标准"}
	}
	return scene, nil
}

func classifyText(text string) string {
	if intent, ok := match(textFamilies, text); ok {
		return intent
	}
	return freeformIntent(text)
}

func match(families []family, s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, f := range families {
		for _, kw := range f.keywords {
			if strings.Contains(lower, kw) {
				return f.intent, true
			}
		}
	}
	return "", false
}

// freeformIntent is the first sentence, split on 。 when present and on
// '.' otherwise, cut to maxFreeformIntent runes.
func freeformIntent(text string) string {
	sep := "."
	if strings.Contains(text, "。") {
		sep = "。"
	}
	first, _, _ := strings.Cut(text, sep)
	if r := []rune(first); len(r) > maxFreeformIntent {
		return string(r[:maxFreeformIntent])
	}
	return first
}

func chainEntities() []model.Entity {
	names := []string{"开始", "处理", "结束"}
	out := make([]model.Entity, 0, len(names))
	for _, n := range names {
		out = append(out, model.Entity{Name: n, Type: "node", Attrs: map[string]any{"label": n}})
	}
	return out
}

func chainRelations() []model.Relation {
	return []model.Relation{
		{Src: "开始", Rel: "leads_to", Dst: "处理"},
		{Src: "处理", Rel: "leads_to", Dst: "结束"},
	}
}
