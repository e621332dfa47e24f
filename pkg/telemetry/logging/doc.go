// Package logging configures the process-wide structured logger.
//
// Components take a *slog.Logger and tag records with a "component"
// attribute; this package only decides the handler, level, and output
// format from configuration.
package logging
