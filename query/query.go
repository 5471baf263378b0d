package query

import (
	"github.com/hupe1980/docgo/document"
)

// Logical operators recognized at the top level of a query.
const (
	opAnd = "$and"
	opOr  = "$or"
)

// DefaultMaxDepth bounds recursive query structures.
const DefaultMaxDepth = 10

// Options configures a query Engine.
type Options struct {
	// MaxDepth is the maximum nesting depth of logical operators.
	MaxDepth int
}

// Engine validates and evaluates queries. An Engine owns its path-segment
// cache; construct one per collection or share across goroutines freely.
type Engine struct {
	maxDepth int
	paths    *document.Paths
}

// New creates a query engine.
func New(optFns ...func(*Options)) *Engine {
	opts := Options{MaxDepth: DefaultMaxDepth}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Engine{
		maxDepth: opts.MaxDepth,
		paths:    document.NewPaths(),
	}
}

// predKind tags a compiled predicate.
type predKind uint8

const (
	predLiteral predKind = iota
	predOperators
	predAnd
	predOr
)

// predicate is one compiled top-level query entry. Queries are compiled and
// validated in full before evaluation, so evaluation itself cannot fail.
type predicate struct {
	kind      predKind
	path      string
	literal   any
	operators map[string]any
	children  []compiledQuery
}

type compiledQuery struct {
	preds []predicate
}

// Execute returns the documents matching q, preserving input order. The input
// slice and its documents are never mutated. A nil or empty query matches
// every document; a nil document list is an error.
func (e *Engine) Execute(docs []document.Document, q map[string]any) ([]document.Document, error) {
	if docs == nil {
		return nil, &InvalidQueryError{Reason: "document list must not be nil"}
	}

	cq, err := e.compile(q, 0)
	if err != nil {
		return nil, err
	}

	matched := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		if e.matches(doc, cq) {
			matched = append(matched, doc)
		}
	}
	return matched, nil
}

// Matches reports whether a single document satisfies q.
func (e *Engine) Matches(doc document.Document, q map[string]any) (bool, error) {
	cq, err := e.compile(q, 0)
	if err != nil {
		return false, err
	}
	return e.matches(doc, cq), nil
}

func (e *Engine) compile(q map[string]any, depth int) (compiledQuery, error) {
	if depth > e.maxDepth {
		return compiledQuery{}, &InvalidQueryError{Reason: "maximum query nesting depth exceeded"}
	}

	cq := compiledQuery{preds: make([]predicate, 0, len(q))}

	for key, value := range q {
		if len(key) > 0 && key[0] == '$' {
			pred, err := e.compileLogical(key, value, depth)
			if err != nil {
				return compiledQuery{}, err
			}
			cq.preds = append(cq.preds, pred)
			continue
		}

		if document.IsOperatorObject(value) {
			operators := value.(map[string]any)
			for op := range operators {
				switch op {
				case document.OpEq, document.OpGt, document.OpLt:
				default:
					return compiledQuery{}, &InvalidQueryError{
						Operator: op,
						Path:     key,
						Reason:   "unsupported comparison operator",
					}
				}
			}
			cq.preds = append(cq.preds, predicate{kind: predOperators, path: key, operators: operators})
			continue
		}

		cq.preds = append(cq.preds, predicate{kind: predLiteral, path: key, literal: value})
	}

	return cq, nil
}

func (e *Engine) compileLogical(key string, value any, depth int) (predicate, error) {
	var kind predKind
	switch key {
	case opAnd:
		kind = predAnd
	case opOr:
		kind = predOr
	default:
		return predicate{}, &InvalidQueryError{Operator: key, Reason: "unsupported logical operator"}
	}

	operands, ok := toSubQueries(value)
	if !ok {
		return predicate{}, &InvalidQueryError{Operator: key, Reason: "operand must be an array of sub-queries"}
	}

	children := make([]compiledQuery, 0, len(operands))
	for _, sub := range operands {
		child, err := e.compile(sub, depth+1)
		if err != nil {
			return predicate{}, err
		}
		children = append(children, child)
	}

	return predicate{kind: kind, children: children}, nil
}

// toSubQueries accepts both the JSON-decoded form ([]any of maps) and the
// Go-literal form ([]map[string]any).
func toSubQueries(value any) ([]map[string]any, bool) {
	switch tv := value.(type) {
	case []map[string]any:
		return tv, true
	case []any:
		subs := make([]map[string]any, 0, len(tv))
		for _, e := range tv {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, false
			}
			subs = append(subs, m)
		}
		return subs, true
	default:
		return nil, false
	}
}

func (e *Engine) matches(doc document.Document, cq compiledQuery) bool {
	for _, pred := range cq.preds {
		if !e.matchPredicate(doc, pred) {
			return false
		}
	}
	return true
}

func (e *Engine) matchPredicate(doc document.Document, pred predicate) bool {
	switch pred.kind {
	case predAnd:
		// Empty $and matches everything.
		for _, child := range pred.children {
			if !e.matches(doc, child) {
				return false
			}
		}
		return true
	case predOr:
		// Empty $or matches nothing.
		for _, child := range pred.children {
			if e.matches(doc, child) {
				return true
			}
		}
		return false
	case predOperators:
		value, _ := e.paths.Resolve(doc, pred.path)
		// Operator names were validated at compile time.
		ok, _ := document.ApplyOperators(value, pred.operators)
		return ok
	default:
		value, _ := e.paths.Resolve(doc, pred.path)
		return document.Equal(value, pred.literal, document.EqualOptions{ArrayContainsScalar: true})
	}
}
