// Package codec centralizes bundle encoding.
//
// Codec selection is a breaking-change boundary: if you change codecs,
// persisted bundles created by older codecs may no longer decode. Persisted
// formats that need to be self-describing should store the codec name and
// select it via ByName on load.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "zstd+json":
		return Zstd{Inner: JSON{}}, true
	case "zstd+go-json":
		return Zstd{Inner: GoJSON{}}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Default is the default codec used by the library.
var Default Codec = GoJSON{}
