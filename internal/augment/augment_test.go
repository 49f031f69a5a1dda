package augment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

func chainScene(intent string) model.SceneSpec {
	return model.SceneSpec{
		Intent: intent,
		Entities: []model.Entity{
			{Name: "开始", Type: "node"},
			{Name: "处理", Type: "node"},
			{Name: "Gateway", Type: "device"},
		},
	}
}

func TestKnowledgeGraph_ProcessFlow(t *testing.T) {
	res, err := KnowledgeGraph{}.Augment(context.Background(), chainScene(model.IntentProcessFlow))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"工艺":    "标准工艺流程",
		"材料":    "基础材料",
		"设备":    "标准设备",
		"开始_属性": "开始的补充属性",
		"处理_属性": "处理的补充属性",
	}, res.Filled)
	assert.Empty(t, res.Citations)
}

func TestKnowledgeGraph_UnknownIntentOnlyDerivesEntityKeys(t *testing.T) {
	res, err := KnowledgeGraph{}.Augment(context.Background(), chainScene("Sales by region"))
	require.NoError(t, err)
	assert.Len(t, res.Filled, 2)
	assert.Contains(t, res.Filled, "开始_属性")
}

func TestRAG_ByIntent(t *testing.T) {
	tests := []struct {
		intent string
		want   map[string]string
	}{
		{model.IntentProcessFlow, map[string]string{"参数": "标准参数值", "标准": "ISO 9001"}},
		{model.IntentNetworkGraph, map[string]string{"配置参数": "默认配置", "安全标准": "ISO 27001"}},
		{model.IntentUIDiagram, map[string]string{"设计规范": "Material Design Guidelines", "响应式参数": "标准断点"}},
		{"freeform", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			res, err := RAG{}.Augment(context.Background(), chainScene(tt.intent))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Filled)
			assert.NotNil(t, res.Citations)
		})
	}
}

func TestSources(t *testing.T) {
	assert.Equal(t, SourceKG, KnowledgeGraph{}.Source())
	assert.Equal(t, SourceRAG, RAG{}.Source())
	assert.Contains(t, KnowledgeGraph{}.PriorityKeys(), "材料")
	assert.Contains(t, RAG{}.PriorityKeys(), "标准")
}
