// Package config loads timelock settings from defaults, an optional YAML
// file and TIMELOCK_* environment variables, then checks them against an
// embedded CUE schema.
package config
