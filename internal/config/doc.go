// Package config loads gamesearch settings from an optional .env file, an
// optional YAML or TOML file, and the environment, in that order of
// increasing precedence.
package config
