// Package cli constructs the protected-push command-line interface, wiring the
// Cobra root command, configuration loader, and structured logging to the
// workflow service.
package cli
