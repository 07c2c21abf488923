package config

import "fmt"

// ConfigurationError is fatal to a run: it is raised before any sample is
// processed when a value is missing, malformed or of the wrong type.
type ConfigurationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("'%s' %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("config error: %s", msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}
