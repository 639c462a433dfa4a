// Package app contains the core application logic. It loads sequence
// definitions, wires the track modules, compiles the root sequence and plays
// it headlessly, decoupled from any specific entrypoint like a CLI or server.
package app
