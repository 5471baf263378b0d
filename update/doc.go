// Package update validates and applies update-operator documents.
//
// Apply is a pure function: the input document is never mutated, and a fresh
// document is returned even when an operator turns out to be a no-op.
// Intermediate maps along a dot-path are created on demand when the addressed
// field or one of its ancestors is absent.
package update
