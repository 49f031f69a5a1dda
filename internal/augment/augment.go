// Package augment fills scene slots from the knowledge graph and from
// retrieval, and merges their proposals into a FinalSpec.
package augment

import (
	"context"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// Source identifies an augmentation stage.
type Source string

const (
	SourceKG  Source = "kg"
	SourceRAG Source = "rag"
)

// Result is what a stage proposes for a scene.
type Result struct {
	Filled    map[string]string `json:"filled"`
	Citations []model.Citation  `json:"citations"`
}

// Augmenter proposes slot values for a scene. Implementations must be
// side-effect free.
type Augmenter interface {
	Source() Source
	Augment(ctx context.Context, scene model.SceneSpec) (Result, error)
	// PriorityKeys are the keys this source may overwrite when another
	// source already filled them.
	PriorityKeys() []string
}

// KnowledgeGraph fills structural keys.
type KnowledgeGraph struct{}

var _ Augmenter = KnowledgeGraph{}

var kgByIntent = map[string][][2]string{
	model.IntentProcessFlow: {
		{"工艺", "标准工艺流程"},
		{"材料", "基础材料"},
		{"设备", "标准设备"},
	},
	model.IntentNetworkGraph: {
		{"网络类型", "标准网络拓扑"},
		{"协议", "TCP/IP"},
	},
	model.IntentUIDiagram: {
		{"组件库", "标准 UI 组件"},
		{"样式", "Material Design"},
	},
}

var kgPriority = []string{"工艺", "材料", "设备", "网络类型", "协议", "组件库", "样式"}

func (KnowledgeGraph) Source() Source { return SourceKG }

func (KnowledgeGraph) PriorityKeys() []string { return kgPriority }

// Augment returns the intent's structural keys plus "<name>_属性" for
// every node entity. Citations are always empty.
func (KnowledgeGraph) Augment(ctx context.Context, scene model.SceneSpec) (Result, error) {
	filled := make(map[string]string)
	for _, kv := range kgByIntent[scene.Intent] {
		filled[kv[0]] = kv[1]
	}
	for _, e := range scene.Entities {
		if e.Type == "node" {
			filled[e.Name+"_属性"] = e.Name + "的补充属性"
		}
	}
	return Result{Filled: filled, Citations: []model.Citation{}}, nil
}

// RAG fills descriptive keys.
type RAG struct{}

var _ Augmenter = RAG{}

var ragByIntent = map[string][][2]string{
	model.IntentProcessFlow: {
		{"参数", "标准参数值"},
		{"标准", "ISO 9001"},
	},
	model.IntentNetworkGraph: {
		{"配置参数", "默认配置"},
		{"安全标准", "ISO 27001"},
	},
	model.IntentUIDiagram: {
		{"设计规范", "Material Design Guidelines"},
		{"响应式参数", "标准断点"},
	},
}

var ragPriority = []string{"参数", "标准", "配置参数", "安全标准", "设计规范", "响应式参数"}

func (RAG) Source() Source { return SourceRAG }

func (RAG) PriorityKeys() []string { return ragPriority }

// Augment returns the intent's descriptive keys. No retrieval index is
// attached, so citations are empty.
func (RAG) Augment(ctx context.Context, scene model.SceneSpec) (Result, error) {
	filled := make(map[string]string)
	for _, kv := range ragByIntent[scene.Intent] {
		filled[kv[0]] = kv[1]
	}
	return Result{Filled: filled, Citations: []model.Citation{}}, nil
}
