package augment

import (
	"sort"

	"github.com/AaronLay10/DiagramEngine/internal/model"
)

// Proposal is one stage's output tagged with its priority keys.
type Proposal struct {
	Source   Source
	Priority []string
	Result   Result
}

// ProposalFrom tags r with a's source and priority keys.
func ProposalFrom(a Augmenter, r Result) Proposal {
	return Proposal{Source: a.Source(), Priority: a.PriorityKeys(), Result: r}
}

// Policy merges proposals into a FinalSpec. A key not yet filled is
// written; a filled key is overwritten only when it is in the proposing
// source's priority set. Proposals must be applied KG first, then RAG.
type Policy struct{}

// Apply merges p into spec and returns the keys it wrote.
func (Policy) Apply(spec *model.FinalSpec, p Proposal) ([]string, error) {
	priority := make(map[string]struct{}, len(p.Priority))
	for _, k := range p.Priority {
		priority[k] = struct{}{}
	}

	keys := make([]string, 0, len(p.Result.Filled))
	for k := range p.Result.Filled {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var written []string
	for _, k := range keys {
		_, exists := spec.Filled[k]
		_, owns := priority[k]
		if exists && !owns {
			continue
		}
		if err := spec.Set(k, p.Result.Filled[k]); err != nil {
			return written, err
		}
		written = append(written, k)
	}
	if len(p.Result.Citations) > 0 {
		if err := spec.AddCitations(p.Result.Citations...); err != nil {
			return written, err
		}
	}
	return written, nil
}

