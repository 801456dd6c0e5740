package config

import "errors"

// Sentinel errors returned by Load and Validate.
var (
	// ErrInvalidConfig wraps every range or enumeration failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures to read or decode a source.
	ErrLoadConfig = errors.New("load config failed")
	// ErrConfigFile marks the YAML file named by STILLCAP_CONFIG as the failing source.
	ErrConfigFile = errors.New("config file")
)
