package config

import "errors"

// ErrInvalidPeriod is returned when a period string is not of the form <n>h or <n>d.
var ErrInvalidPeriod = errors.New("invalid period format")

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
