package model

import "errors"

// Well-known intents produced by perception.
const (
	IntentProcessFlow  = "process_flow"
	IntentNetworkGraph = "network_graph"
	IntentUIDiagram    = "ui_diagram"
)

// Entity is a node in the perceived scene.
type Entity struct {
	Name  string         `json:"name"`
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs"`
}

// Relation is a directed, labelled edge between two entities.
type Relation struct {
	Src string `json:"src"`
	Rel string `json:"rel"`
	Dst string `json:"dst"`
}

// SceneSpec is the structured interpretation of the raw input. Exactly one
// is produced per run and it is read-only afterwards.
type SceneSpec struct {
	Intent       string     `json:"intent"`
	Entities     []Entity   `json:"entities"`
	Relations    []Relation `json:"relations"`
	MissingSlots []string   `json:"missing_slots"`
	Confidence   float64    `json:"confidence"`
}

// Citation is a reference returned by retrieval augmentation.
type Citation struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Chunk  string `json:"chunk"`
}

// ErrFrozen is returned when a FinalSpec is modified after code generation
// has started.
var ErrFrozen = errors.New("final spec is frozen")

// FinalSpec is the scene plus everything augmentation filled in.
type FinalSpec struct {
	Scene     SceneSpec         `json:"scene"`
	Filled    map[string]string `json:"filled"`
	Citations []Citation        `json:"citations"`

	frozen bool
}

// NewFinalSpec wraps scene with an empty slot map.
func NewFinalSpec(scene SceneSpec) *FinalSpec {
	return &FinalSpec{
		Scene:     scene,
		Filled:    make(map[string]string),
		Citations: []Citation{},
	}
}

// Set writes one slot.
func (f *FinalSpec) Set(key, value string) error {
	if f.frozen {
		return ErrFrozen
	}
	if f.Filled == nil {
		f.Filled = make(map[string]string)
	}
	f.Filled[key] = value
	return nil
}

// AddCitations appends retrieval citations.
func (f *FinalSpec) AddCitations(c ...Citation) error {
	if f.frozen {
		return ErrFrozen
	}
	f.Citations = append(f.Citations, c...)
	return nil
}

// Freeze marks the spec read-only.
func (f *FinalSpec) Freeze() { f.frozen = true }
