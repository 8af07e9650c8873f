// Package config loads monitor configuration from PSM_* environment
// variables with sensible defaults, so a bare `psm-monitor` run against a
// local Redis just works.
package config
