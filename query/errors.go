package query

import "fmt"

// InvalidQueryError reports a malformed query shape, an unsupported operator,
// or a malformed logical operand. Operator and Path identify the offending
// part of the query when known.
type InvalidQueryError struct {
	Operator string
	Path     string
	Reason   string
}

func (e *InvalidQueryError) Error() string {
	switch {
	case e.Operator != "" && e.Path != "":
		return fmt.Sprintf("invalid query: %s (operator %s, path %s)", e.Reason, e.Operator, e.Path)
	case e.Operator != "":
		return fmt.Sprintf("invalid query: %s (operator %s)", e.Reason, e.Operator)
	case e.Path != "":
		return fmt.Sprintf("invalid query: %s (path %s)", e.Reason, e.Path)
	default:
		return fmt.Sprintf("invalid query: %s", e.Reason)
	}
}
