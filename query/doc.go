// Package query validates and evaluates predicate trees against in-memory
// document lists.
//
// A query's top level is an implicit AND over its keys. A key is either a
// logical operator ($and/$or over arrays of sub-queries) or a field predicate
// whose key is a dot-path and whose value is an operator object or a literal.
// Queries are validated in full before any document is examined, so a
// malformed query never partially evaluates.
package query
