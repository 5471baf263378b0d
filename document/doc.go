// Package document defines the open document model shared by the query and
// update engines: string-keyed nested maps of JSON-compatible values plus
// time.Time instants.
//
// The comparison primitives here are deliberately strict: no cross-kind
// coercion, code-point string ordering, and instant equality at millisecond
// precision. Both engines build on the same primitives so that a value that
// matches in a query compares identically in an update operator.
package document
