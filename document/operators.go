package document

import "fmt"

// Comparison operators recognized inside an operator object.
const (
	OpEq = "$eq"
	OpGt = "$gt"
	OpLt = "$lt"
)

// ErrUnknownOperator is returned when an operator object carries a key that is
// not a recognized comparison operator.
type ErrUnknownOperator struct {
	Operator string
}

func (e *ErrUnknownOperator) Error() string {
	return fmt.Sprintf("unsupported comparison operator %q", e.Operator)
}

// ApplyOperators evaluates an operator object against a single value. All
// operators AND together. Ordering operators evaluate false on non-comparable
// pairs, so both $gt and $lt fail rather than error on mixed kinds.
func ApplyOperators(value any, operators map[string]any) (bool, error) {
	for name, operand := range operators {
		switch name {
		case OpEq:
			if !Equal(value, operand, EqualOptions{ArrayContainsScalar: true}) {
				return false, nil
			}
		case OpGt:
			c, ok := Compare(value, operand)
			if !ok || c <= 0 {
				return false, nil
			}
		case OpLt:
			c, ok := Compare(value, operand)
			if !ok || c >= 0 {
				return false, nil
			}
		default:
			return false, &ErrUnknownOperator{Operator: name}
		}
	}
	return true, nil
}
