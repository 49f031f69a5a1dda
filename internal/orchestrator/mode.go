package orchestrator

import (
	"fmt"
	"strings"
)

// Mode selects the pipeline variant.
type Mode string

const (
	// ModeFull routes by intent and output mode.
	ModeFull Mode = "full"
	// ModeSVGOnly always emits SVG. It is the legacy fast path and expects
	// a generator with a chat client.
	ModeSVGOnly Mode = "svg-only"
)

// ParseMode validates s. An empty string means full.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeFull, nil
	case ModeFull, ModeSVGOnly:
		return m, nil
	}
	return "", fmt.Errorf("unsupported pipeline mode: %q", s)
}
