package config

import "errors"

var (
	// ErrInvalidConfig marks a configuration that loaded but failed Validate.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig marks a file, env or decode failure while loading.
	ErrLoadConfig = errors.New("load config failed")
)
