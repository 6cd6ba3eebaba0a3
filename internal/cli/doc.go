// Package cli turns command-line arguments into an app.Config. It owns the
// flag surface, validates user input and maps usage errors to an ExitError
// carrying the process exit code.
package cli
