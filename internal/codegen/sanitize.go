package codegen

import (
	"regexp"
	"strings"
)

// Tagged fences are tried before bare ones.
var fencePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?is)```(?:xml|svg|html)?\\s*\\n?(.*?)```"),
	regexp.MustCompile("(?s)```\\s*\\n?(.*?)```"),
}

const (
	svgOpen  = "<svg"
	svgClose = "</svg>"
)

// Sanitize extracts the SVG document from a model reply. Fences are
// stripped, then the text from the first <svg to the last </svg> is kept.
// Without an <svg tag, or if nothing would be left, the trimmed reply is
// returned as is.
func Sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}

	for _, re := range fencePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			text = strings.TrimSpace(m[1])
		}
	}

	start := strings.Index(text, svgOpen)
	if start == -1 {
		return fallback(text, raw)
	}
	end := strings.LastIndex(text, svgClose)
	if end == -1 || end < start {
		return fallback(text, raw)
	}
	out := strings.TrimSpace(text[start : end+len(svgClose)])
	return fallback(out, raw)
}

func fallback(s, raw string) string {
	if s == "" {
		return strings.TrimSpace(raw)
	}
	return s
}
