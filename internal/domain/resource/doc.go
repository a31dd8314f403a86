// Package resource models the inputs a renderer consumes.
//
// A Collection is an ordered, immutable list of framework and library
// descriptors. Insertion order (after a stable sort on Order) is load and
// execution order; duplicates are preserved. EditorContent maps editor slots
// to raw source text.
//
// Collections are normally produced upstream by the content manager. The
// Catalog in this package loads named framework bundles and library files
// from a YAML, TOML or JSON manifest so requests can refer to them by name.
package resource
