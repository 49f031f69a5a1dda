package augment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

func kgProposal(filled map[string]string) Proposal {
	return ProposalFrom(KnowledgeGraph{}, Result{Filled: filled})
}

func ragProposal(filled map[string]string, cites ...model.Citation) Proposal {
	return ProposalFrom(RAG{}, Result{Filled: filled, Citations: cites})
}

// merge applies proposals in order onto a fresh FinalSpec, the way the
// orchestrator does across the KG and RAG stages.
func merge(scene model.SceneSpec, proposals ...Proposal) (*model.FinalSpec, error) {
	spec := model.NewFinalSpec(scene)
	for _, p := range proposals {
		if _, err := (Policy{}).Apply(spec, p); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

func TestMerge_KGPriorityKeyKeepsFirstWriter(t *testing.T) {
	// 材料 belongs to KG, so RAG cannot overwrite it.
	spec, err := merge(model.SceneSpec{},
		kgProposal(map[string]string{"材料": "A"}),
		ragProposal(map[string]string{"材料": "B"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "A", spec.Filled["材料"])
}

func TestMerge_RAGPriorityKeyOverwritesKG(t *testing.T) {
	spec, err := merge(model.SceneSpec{},
		kgProposal(map[string]string{"标准": "from-kg"}),
		ragProposal(map[string]string{"标准": "ISO 9001"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "ISO 9001", spec.Filled["标准"])
}

func TestMerge_UnownedKeyFirstWriterWins(t *testing.T) {
	spec, err := merge(model.SceneSpec{},
		kgProposal(map[string]string{"颜色": "red"}),
		ragProposal(map[string]string{"颜色": "blue"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "red", spec.Filled["颜色"])
}

func TestMerge_DisjointKeysUnion(t *testing.T) {
	spec, err := merge(model.SceneSpec{Intent: model.IntentProcessFlow},
		kgProposal(map[string]string{"工艺": "标准工艺流程"}),
		ragProposal(map[string]string{"参数": "标准参数值"}, model.Citation{Source: "handbook"}),
	)
	require.NoError(t, err)
	assert.Len(t, spec.Filled, 2)
	assert.Len(t, spec.Citations, 1)
	assert.Equal(t, model.IntentProcessFlow, spec.Scene.Intent)
}

func TestMerge_NoProposals(t *testing.T) {
	spec, err := merge(model.SceneSpec{})
	require.NoError(t, err)
	assert.Empty(t, spec.Filled)
}

func TestApply_FrozenSpec(t *testing.T) {
	spec := model.NewFinalSpec(model.SceneSpec{})
	spec.Freeze()
	_, err := Policy{}.Apply(spec, kgProposal(map[string]string{"工艺": "x"}))
	assert.ErrorIs(t, err, model.ErrFrozen)
}

func TestApply_ReportsWrittenKeys(t *testing.T) {
	spec := model.NewFinalSpec(model.SceneSpec{})
	_, err := Policy{}.Apply(spec, kgProposal(map[string]string{"材料": "A", "工艺": "P"}))
	require.NoError(t, err)

	written, err := Policy{}.Apply(spec, ragProposal(map[string]string{"材料": "B", "参数": "C"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"参数"}, written)
}
