package document

import "time"

// WireEncode converts a value tree into its wire form: every time.Time
// becomes a millisecond ISO-8601 string. Maps and arrays are rebuilt, so the
// input is never mutated.
func WireEncode(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return FormatInstant(tv)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = WireEncode(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = WireEncode(e)
		}
		return out
	default:
		return v
	}
}

// WireDecode is the inverse of WireEncode: strings in the instant wire layout
// are revived into time.Time values.
func WireDecode(v any) any {
	switch tv := v.(type) {
	case string:
		if t, ok := ParseInstant(tv); ok {
			return t
		}
		return tv
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = WireDecode(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = WireDecode(e)
		}
		return out
	default:
		return v
	}
}
