// Package dag holds the sequence reference graph. A sequence depends on every
// sequence it plays through a sub-sequence section, and compilation refuses
// any sequence that transitively plays itself.
package dag
