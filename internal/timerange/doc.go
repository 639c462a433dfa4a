// Package timerange provides the single-precision time ranges used by every
// stage of sequence compilation and evaluation.
//
// A Range is described by two bounds, each of which is open (unbounded),
// inclusive or exclusive. Internally every bound is mapped onto a Cut: a
// position that sits either just before or just after a value on the real
// line. Comparing cuts gives exact answers for touching, overlapping and
// degenerate ranges without any epsilon tolerance.
package timerange
