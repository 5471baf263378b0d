package document

import "time"

// Kind identifies the comparison kind of a document value.
type Kind uint8

const (
	// KindInvalid represents a value outside the document model.
	KindInvalid Kind = iota
	// KindNull represents nil.
	KindNull
	// KindNumber represents any numeric value, compared as float64.
	KindNumber
	// KindString represents a string value.
	KindString
	// KindBool represents a boolean value.
	KindBool
	// KindInstant represents a time.Time value.
	KindInstant
	// KindArray represents a []any value.
	KindArray
	// KindMap represents a nested map[string]any value.
	KindMap
)

// KindOf classifies a document value.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case bool:
		return KindBool
	case string:
		return KindString
	case time.Time:
		return KindInstant
	case []any:
		return KindArray
	case map[string]any:
		return KindMap
	default:
		if _, ok := toFloat(v); ok {
			return KindNumber
		}
		return KindInvalid
	}
}

// EqualOptions tunes Equal.
type EqualOptions struct {
	// ArrayContainsScalar makes an array equal to a non-array scalar when the
	// scalar is structurally equal to one of its members. Query-literal
	// matching enables this; update operators do not.
	ArrayContainsScalar bool
}

// Equal reports strict-type structural equality between two document values.
// There is no cross-kind coercion: a number never equals a string, and a
// nullish value equals only another nullish value. Instants compare at
// millisecond precision.
func Equal(a, b any, opts EqualOptions) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ka, kb := KindOf(a), KindOf(b)

	if opts.ArrayContainsScalar && ka != kb {
		if ka == KindArray {
			return arrayContains(a.([]any), b)
		}
		if kb == KindArray {
			return arrayContains(b.([]any), a)
		}
	}

	if ka != kb {
		return false
	}

	switch ka {
	case KindNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return fa == fb
	case KindString:
		return a.(string) == b.(string)
	case KindBool:
		return a.(bool) == b.(bool)
	case KindInstant:
		return a.(time.Time).UnixMilli() == b.(time.Time).UnixMilli()
	case KindArray:
		aa, ba := a.([]any), b.([]any)
		if len(aa) != len(ba) {
			return false
		}
		for i := range aa {
			if !Equal(aa[i], ba[i], EqualOptions{}) {
				return false
			}
		}
		return true
	case KindMap:
		am, bm := a.(map[string]any), b.(map[string]any)
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !Equal(av, bv, EqualOptions{}) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func arrayContains(arr []any, scalar any) bool {
	for _, e := range arr {
		if Equal(e, scalar, EqualOptions{}) {
			return true
		}
	}
	return false
}

// Compare orders two document values. Ordering is defined only for
// number/number, string/string (code-point order) and instant/instant
// (chronological) pairs; every other pairing, including either side nullish,
// is not comparable and reports ok=false.
func Compare(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return 0, false
	}

	switch ka {
	case KindNumber:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	case KindString:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		default:
			return 0, true
		}
	case KindInstant:
		ma, mb := a.(time.Time).UnixMilli(), b.(time.Time).UnixMilli()
		switch {
		case ma < mb:
			return -1, true
		case ma > mb:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// IsOperatorObject reports whether v is a non-empty map whose every key is
// $-prefixed.
func IsOperatorObject(v any) bool {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return false
	}
	for k := range m {
		if len(k) == 0 || k[0] != '$' {
			return false
		}
	}
	return true
}

// ToNumber reports whether v is numeric and returns it as float64. All
// numeric kinds compare through this single representation.
func ToNumber(v any) (float64, bool) {
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
