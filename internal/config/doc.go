// ABOUTME: Package documentation for the config package
// ABOUTME: Describes YAML loading, env expansion and validation

// Package config loads firewatch-gateway configuration from YAML. Values
// start from documented defaults, ${VAR} references are expanded from the
// environment before parsing, duration fields accept Go duration strings,
// and the result is validated before use.
package config
