package model

import (
	"fmt"
	"time"
)

// DslType is a supported diagram source language.
type DslType string

const (
	DslMermaid  DslType = "mermaid"
	DslGraphviz DslType = "graphviz"
	DslSVG      DslType = "svg"
)

// Valid reports whether t is one of the supported languages.
func (t DslType) Valid() bool {
	switch t {
	case DslMermaid, DslGraphviz, DslSVG:
		return true
	}
	return false
}

// ParseDslType validates s.
func ParseDslType(s string) (DslType, error) {
	t := DslType(s)
	if !t.Valid() {
		return "", &ValidationError{Field: "dsl_type", Reason: fmt.Sprintf("unsupported value %q", s)}
	}
	return t, nil
}

// DraftMeta travels with generated code.
type DraftMeta struct {
	Title        string `json:"title"`
	Width        *int   `json:"width"`
	Height       *int   `json:"height"`
	Editable     bool   `json:"editable"`
	RouterReason string `json:"router_reason"`
}

// DslDraft is the output of code generation for one run.
type DslDraft struct {
	DslType DslType   `json:"dsl_type"`
	Code    string    `json:"code"`
	Meta    DraftMeta `json:"meta"`
}

// Draft is a persisted, editable unit of generated diagram source.
type Draft struct {
	ID        int64     `json:"id"`
	DslType   DslType   `json:"dsl_type"`
	Code      string    `json:"code"`
	Meta      DraftMeta `json:"meta"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InputSubmission is a stored request that can be run later by id.
type InputSubmission struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	ImageURL  string    `json:"image_url,omitempty"`
	Params    Options   `json:"params"`
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Payload rebuilds the pipeline input for the submission.
func (s InputSubmission) Payload() (InputPayload, error) {
	var images []ImageRef
	if s.ImageURL != "" {
		images = append(images, ImageRef{
			ID:   fmt.Sprintf("%d", s.ID),
			URL:  s.ImageURL,
			Mime: "image/jpeg",
		})
	}
	return NewInputPayload(s.Text, images, s.Params)
}

// SvgDraw is a named SVG document managed through the legacy CRUD surface.
type SvgDraw struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	SvgContent string    `json:"svg_content"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
