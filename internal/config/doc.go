// Package config loads, normalizes, and validates deodexer configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a .env file from the working directory,
// and honours DEODEXER_* environment overrides. The Config type centralizes
// every knob the CLI and the run workflow need, and JobSpec turns it into the
// read-only job specification shared by all workers.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
