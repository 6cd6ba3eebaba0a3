// Package app contains the core application logic. It wires the task
// registry, the checkpoint store, the workspace and the pipeline controller
// together and owns the run lifecycle, decoupled from any specific entrypoint
// like a CLI.
package app
