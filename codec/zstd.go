package codec

import "github.com/klauspost/compress/zstd"

// Shared zstd coders; EncodeAll/DecodeAll on shared instances are
// concurrency-safe.
var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// Zstd wraps another codec with zstd compression. Useful for large
// collection bundles on remote object stores.
type Zstd struct {
	// Inner is the codec producing the uncompressed bytes. Nil means Default.
	Inner Codec
}

func (c Zstd) inner() Codec {
	if c.Inner == nil {
		return Default
	}
	return c.Inner
}

// Marshal encodes with the inner codec, then compresses.
func (c Zstd) Marshal(v any) ([]byte, error) {
	raw, err := c.inner().Marshal(v)
	if err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

// Unmarshal decompresses, then decodes with the inner codec.
func (c Zstd) Unmarshal(data []byte, v any) error {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return err
	}
	return c.inner().Unmarshal(raw, v)
}

// Name returns "zstd+" followed by the inner codec name.
func (c Zstd) Name() string { return "zstd+" + c.inner().Name() }
