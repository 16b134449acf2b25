// Package config handles configuration loading, parsing, and validation
// from various sources (environment variables, files). It provides type-safe
// access to the settings needed by the coordination components while keeping
// configuration details separate from the components themselves.
package config
