// Package config loads and validates the OpenMast YAML configuration.
//
// One file configures the snapshot store backend, restore tuning, the
// admission gate, and telemetry. Every field has a default; a missing
// file yields the defaults, a present file is validated with
// go-playground/validator tags before use.
package config
