package update

import (
	"errors"

	"github.com/hupe1980/docgo/document"
)

// opKind tags a recognized update operator. Operator names are resolved to
// kinds once, at the document boundary, never during application.
type opKind uint8

const (
	opSet opKind = iota + 1
	opInc
	opMul
	opMin
	opMax
	opPull
	opAddToSet
)

var opKinds = map[string]opKind{
	"$set":      opSet,
	"$inc":      opInc,
	"$mul":      opMul,
	"$min":      opMin,
	"$max":      opMax,
	"$pull":     opPull,
	"$addToSet": opAddToSet,
}

// compiledOp is one validated operator with its field assignments.
type compiledOp struct {
	name   string
	kind   opKind
	fields map[string]any
}

// Engine applies update specifications to documents. An Engine owns its
// path-segment cache and is safe for concurrent use.
type Engine struct {
	paths *document.Paths
}

// New creates an update engine.
func New() *Engine {
	return &Engine{paths: document.NewPaths()}
}

// IsOperatorDocument classifies an update specification. A specification is
// either a full replacement document (no $-prefixed keys) or an operator
// document (every key $-prefixed); mixing the two forms is an error.
func IsOperatorDocument(spec map[string]any) (bool, error) {
	if len(spec) == 0 {
		return false, &InvalidUpdateError{Reason: "update specification must not be empty"}
	}
	operators, plain := 0, 0
	for key := range spec {
		if len(key) > 0 && key[0] == '$' {
			operators++
		} else {
			plain++
		}
	}
	if operators > 0 && plain > 0 {
		return false, &InvalidUpdateError{Reason: "cannot mix update operators with replacement fields"}
	}
	return operators > 0, nil
}

// Apply produces a new document from doc and spec without mutating doc.
//
// An operator document applies each operator to its addressed dot-paths. A
// replacement document replaces everything except the identity field, which is
// carried over from doc when the replacement omits it.
func (e *Engine) Apply(doc document.Document, spec map[string]any) (document.Document, error) {
	operatorDoc, err := IsOperatorDocument(spec)
	if err != nil {
		return nil, err
	}

	if !operatorDoc {
		replaced := document.Clone(spec)
		if _, ok := replaced[document.IDField]; !ok {
			if id, ok := doc[document.IDField]; ok {
				replaced[document.IDField] = id
			}
		}
		return replaced, nil
	}

	ops, err := compile(spec)
	if err != nil {
		return nil, err
	}

	result := document.Clone(doc)
	if result == nil {
		result = document.Document{}
	}

	for _, op := range ops {
		for path, operand := range op.fields {
			if err := e.applyField(result, op, path, operand); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

func compile(spec map[string]any) ([]compiledOp, error) {
	ops := make([]compiledOp, 0, len(spec))
	for name, operand := range spec {
		kind, ok := opKinds[name]
		if !ok {
			return nil, &InvalidUpdateError{Operator: name, Reason: "unsupported update operator"}
		}
		fields, ok := operand.(map[string]any)
		if !ok || len(fields) == 0 {
			return nil, &InvalidUpdateError{Operator: name, Reason: "operator operand must be a non-empty map of field assignments"}
		}
		ops = append(ops, compiledOp{name: name, kind: kind, fields: fields})
	}
	return ops, nil
}

func (e *Engine) applyField(doc document.Document, op compiledOp, path string, operand any) error {
	current, present := e.lookup(doc, path)

	switch op.kind {
	case opSet:
		return e.set(doc, op, path, document.CloneValue(operand))

	case opInc:
		opn, ok := toNumber(operand)
		if !ok {
			return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "operand is not numeric"}
		}
		base := 0.0
		if present {
			base, ok = toNumber(current)
			if !ok {
				return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "field is not numeric"}
			}
		}
		return e.set(doc, op, path, base+opn)

	case opMul:
		if !present {
			// Historical multiplicative-identity quirk: an absent field
			// always becomes 0, whatever the operand.
			return e.set(doc, op, path, 0.0)
		}
		base, ok := toNumber(current)
		if !ok {
			return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "field is not numeric"}
		}
		opn, ok := toNumber(operand)
		if !ok {
			return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "operand is not numeric"}
		}
		return e.set(doc, op, path, base*opn)

	case opMin, opMax:
		if !present {
			return e.set(doc, op, path, document.CloneValue(operand))
		}
		cmp, err := compareForBound(op, path, current, operand)
		if err != nil {
			return err
		}
		if (op.kind == opMin && cmp > 0) || (op.kind == opMax && cmp < 0) {
			return e.set(doc, op, path, document.CloneValue(operand))
		}
		// Ties leave the stored value untouched.
		return nil

	case opPull:
		if !present {
			return nil
		}
		arr, ok := current.([]any)
		if !ok {
			return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "field is not an array"}
		}
		kept := make([]any, 0, len(arr))
		for _, elem := range arr {
			matched, err := pullMatches(op, path, elem, operand)
			if err != nil {
				return err
			}
			if !matched {
				kept = append(kept, elem)
			}
		}
		return e.set(doc, op, path, kept)

	case opAddToSet:
		arr := []any{}
		if present {
			var ok bool
			arr, ok = current.([]any)
			if !ok {
				return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "field is not an array"}
			}
		}
		for _, elem := range arr {
			if document.Equal(elem, operand, document.EqualOptions{}) {
				return nil
			}
		}
		return e.set(doc, op, path, append(arr, document.CloneValue(operand)))

	default:
		return &InvalidUpdateError{Operator: op.name, Reason: "unsupported update operator"}
	}
}

// compareForBound implements the $min/$max ordering rules: same-kind pairs
// compare per the shared primitives, and null is strictly less than any
// concrete comparable value. Everything else is a type error.
func compareForBound(op compiledOp, path string, current, operand any) (int, error) {
	if current == nil && operand == nil {
		return 0, nil
	}
	if current == nil || operand == nil {
		concrete := current
		if concrete == nil {
			concrete = operand
		}
		switch document.KindOf(concrete) {
		case document.KindNumber, document.KindString, document.KindInstant:
		default:
			return 0, &InvalidUpdateError{Operator: op.name, Path: path, Reason: "values are not comparable"}
		}
		if current == nil {
			return -1, nil
		}
		return 1, nil
	}

	cmp, ok := document.Compare(current, operand)
	if !ok {
		return 0, &InvalidUpdateError{Operator: op.name, Path: path, Reason: "values are not comparable"}
	}
	return cmp, nil
}

func pullMatches(op compiledOp, path string, elem, operand any) (bool, error) {
	if document.IsOperatorObject(operand) {
		matched, err := document.ApplyOperators(elem, operand.(map[string]any))
		if err != nil {
			var unknown *document.ErrUnknownOperator
			if errors.As(err, &unknown) {
				return false, &InvalidUpdateError{Operator: unknown.Operator, Path: path, Reason: "unsupported comparison operator in $pull condition"}
			}
			return false, err
		}
		return matched, nil
	}
	return document.Equal(elem, operand, document.EqualOptions{}), nil
}

// lookup resolves the addressed field, reporting absence when the path or any
// ancestor is missing or a non-map intermediate blocks traversal.
func (e *Engine) lookup(doc document.Document, path string) (any, bool) {
	segs := e.paths.Split(path)

	var current any = doc
	for _, seg := range segs {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// set writes value at path, vivifying absent intermediate maps. A present
// non-map intermediate cannot be traversed and is a type error.
func (e *Engine) set(doc document.Document, op compiledOp, path string, value any) error {
	segs := e.paths.Split(path)

	current := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := current[seg]
		if !ok {
			child := document.Document{}
			current[seg] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return &InvalidUpdateError{Operator: op.name, Path: path, Reason: "cannot traverse non-map intermediate field"}
		}
		current = child
	}
	current[segs[len(segs)-1]] = value
	return nil
}

func toNumber(v any) (float64, bool) {
	return document.ToNumber(v)
}
