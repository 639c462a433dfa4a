// Package cli turns the seqcore command line and its SEQCORE_* environment
// variables into an app.Config. Invalid input surfaces as an ExitError
// carrying the process exit code.
package cli
