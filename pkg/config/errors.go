package config

import "errors"

var (
	// ErrNilConfig is returned when Load receives a nil pointer.
	ErrNilConfig = errors.New("config.nil_config")

	// ErrParseFailed wraps environment parsing failures.
	ErrParseFailed = errors.New("config.parse_failed")
)
