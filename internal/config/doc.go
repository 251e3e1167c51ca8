// Package config loads the server configuration from a YAML file, applies
// SWITCHBOT_* environment overrides and validates the result.
package config
