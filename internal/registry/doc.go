// Package registry is the dispatch table between track kinds named in
// sequence files (e.g., `track "property" "speed"`) and the Go factories that
// build their implementations. It also holds the evaluation buckets and
// their priorities.
//
// The registry is populated at startup by each module's Register method and
// then checked against the loaded model, so that a sequence naming an
// unknown track kind fails before anything is compiled.
package registry
