// Package diag classifies the diagnostic text printed by the rendering engine.
//
// OpenSCAD reports most problems as human-readable warnings on stderr and
// still exits 0 for several of them. Every marker string the harness relies
// on lives in this package so the fragile matching has one home and one set
// of tests.
//
// # Categories
//
//   - ImportMissing: an import or use/include target could not be opened
//   - UnknownVariable: the parser silently ignored an unknown variable
//   - EmptyResult: the top-level object rendered to nothing
//   - AssertionTriggered: an assert() in the source failed
//
// A diagnostic text with none of the markers classifies as Other. A single
// text may carry several markers; Classify returns all of them.
package diag
