// Package config defines the Tollbooth configuration structure and its
// loading pipeline.
//
// # Loading
//
// Configuration comes from a YAML file, with defaults filled in for unset
// fields and optional TOLLBOOTH_* environment variable overrides applied
// on top. The signing secret deliberately has no default and should be
// supplied via TOLLBOOTH_SIGNING_SECRET rather than the file.
//
// # Validation
//
// Validate enforces the cross-field constraints the runtime relies on:
// the smoothing factor stays in (0, 1), and the protection thresholds are
// strictly ordered as relax < low < high < 1 so levels cannot flap.
package config
