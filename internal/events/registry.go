package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// run
	"run.request":   {},
	"run.created":   {},
	"run.running":   {},
	"run.succeeded": {},
	"run.failed":    {},

	// step
	"step.started":   {},
	"step.completed": {},
	"step.failed":    {},

	// artifact
	"artifact.added": {},

	// draft
	"draft.saved":   {},
	"draft.updated": {},

	// llm
	"llm.response": {},
	"llm.error":    {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

// Validate rejects event names outside the registry.
func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
