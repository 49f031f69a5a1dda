// Package model defines the data shapes that flow through the diagram
// pipeline and the records persisted for each run.
//
// JSON field names are the canonical serialization used for step snapshots,
// run records and the HTTP boundary.
package model

import (
	"fmt"
	"strings"
)

// OutputMode selects the diagram language, or lets the router decide.
type OutputMode string

const (
	OutputAuto     OutputMode = "auto"
	OutputMermaid  OutputMode = "mermaid"
	OutputGraphviz OutputMode = "graphviz"
	OutputSVG      OutputMode = "svg"

	// OutputPreviewOnly routes like auto but the generated code is never
	// saved as a durable draft.
	OutputPreviewOnly OutputMode = "preview-only"
)

// ParseOutputMode validates s. An empty string means auto.
func ParseOutputMode(s string) (OutputMode, error) {
	m := OutputMode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return OutputAuto, nil
	case OutputAuto, OutputMermaid, OutputGraphviz, OutputSVG, OutputPreviewOnly:
		return m, nil
	}
	return "", &ValidationError{Field: "output_mode", Reason: fmt.Sprintf("unsupported value %q", s)}
}

// ValidationError reports malformed or missing input. No run is created
// for input that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Options are the per-request feature flags. Build them with NewOptions so
// the output mode is validated up front.
type Options struct {
	EnableKG   bool       `json:"enable_kg"`
	EnableRAG  bool       `json:"enable_rag"`
	OutputMode OutputMode `json:"output_mode"`
}

// NewOptions returns validated options.
func NewOptions(enableKG, enableRAG bool, outputMode string) (Options, error) {
	m, err := ParseOutputMode(outputMode)
	if err != nil {
		return Options{}, err
	}
	return Options{EnableKG: enableKG, EnableRAG: enableRAG, OutputMode: m}, nil
}

// Validate checks options that were decoded from JSON rather than built
// with NewOptions.
func (o Options) Validate() error {
	_, err := ParseOutputMode(string(o.OutputMode))
	return err
}

// PreviewOnly reports whether the generated code must not be persisted.
func (o Options) PreviewOnly() bool {
	return o.OutputMode == OutputPreviewOnly
}

// RoutingMode is the mode handed to the DSL router. preview-only only
// affects persistence, so it routes like auto.
func (o Options) RoutingMode() OutputMode {
	if o.OutputMode == "" || o.OutputMode == OutputPreviewOnly {
		return OutputAuto
	}
	return o.OutputMode
}

// ImageRef points at an uploaded or remote image. Only the reference is
// carried through the pipeline.
type ImageRef struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
	Mime   string `json:"mime,omitempty"`
}

// InputPayload is one request to the pipeline. It is owned by the caller
// and never modified by the orchestrator.
type InputPayload struct {
	Text    string     `json:"text"`
	Images  []ImageRef `json:"images"`
	Options Options    `json:"params"`
}

// NewInputPayload copies images and validates options.
func NewInputPayload(text string, images []ImageRef, opts Options) (InputPayload, error) {
	if err := opts.Validate(); err != nil {
		return InputPayload{}, err
	}
	if opts.OutputMode == "" {
		opts.OutputMode = OutputAuto
	}
	return InputPayload{
		Text:    text,
		Images:  append([]ImageRef(nil), images...),
		Options: opts,
	}, nil
}

// HasImages reports whether at least one image reference is present.
func (p InputPayload) HasImages() bool {
	return len(p.Images) > 0
}
