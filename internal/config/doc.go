// Package config handles configuration loading, parsing, and validation
// from various sources (flags, environment variables, a YAML file). It provides
// type-safe access to the store, logging, scan and review settings while keeping
// configuration details separate from business logic.
package config
