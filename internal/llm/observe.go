package llm

import (
	"time"

	"github.com/AaronLay10/DiagramEngine/internal/events"
)

func observe(s Settings, start time.Time, err error) {
	fields := map[string]interface{}{
		"provider":    s.Provider,
		"model":       s.Model,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		_, _ = events.Emit("error", "llm.error", "", fields)
		return
	}
	_, _ = events.Emit("info", "llm.response", "", fields)
}
