package llm

import "fmt"

// ConfigError reports a missing or invalid setting, such as an absent
// credential. Retrying will not help.
type ConfigError struct {
	Setting string
	Msg     string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llm config %s: %s", e.Setting, e.Msg)
}

// ResponseError reports a transport failure, a non-2xx status or a reply
// that could not be used.
type ResponseError struct {
	Provider   string
	StatusCode int
	Msg        string
	Err        error
}

func (e *ResponseError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ResponseError) Unwrap() error { return e.Err }
