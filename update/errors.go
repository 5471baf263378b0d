package update

import "fmt"

// InvalidUpdateError reports a malformed update specification, an unsupported
// operator, or a type mismatch on a numeric or comparable operator.
type InvalidUpdateError struct {
	Operator string
	Path     string
	Reason   string
}

func (e *InvalidUpdateError) Error() string {
	switch {
	case e.Operator != "" && e.Path != "":
		return fmt.Sprintf("invalid update: %s (operator %s, path %s)", e.Reason, e.Operator, e.Path)
	case e.Operator != "":
		return fmt.Sprintf("invalid update: %s (operator %s)", e.Reason, e.Operator)
	default:
		return fmt.Sprintf("invalid update: %s", e.Reason)
	}
}
