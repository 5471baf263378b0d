package docgo

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/docgo/document"
)

// bundleLocator derives the blob locator for a collection's bundle.
func bundleLocator(name string) string {
	return "collections/" + name
}

// Bundle is the persisted unit for one collection: its documents plus local
// metadata.
type Bundle struct {
	Documents []document.Document
	Metadata  BundleMetadata
}

// BundleMetadata is the bundle-local metadata; the authoritative coordination
// record lives in the master index.
type BundleMetadata struct {
	Name          string
	Created       time.Time
	LastUpdated   time.Time
	DocumentCount int
}

// wireBundle is the serialized bundle layout. Instants inside documents
// travel as millisecond ISO-8601 strings and are revived on load.
type wireBundle struct {
	Documents []map[string]any   `json:"documents"`
	Metadata  wireBundleMetadata `json:"metadata"`
}

type wireBundleMetadata struct {
	Name          string `json:"name"`
	Created       string `json:"created"`
	LastUpdated   string `json:"lastUpdated"`
	DocumentCount int    `json:"documentCount"`
}

// readBundle loads and decodes a collection bundle.
func (db *DB) readBundle(ctx context.Context, locator string) (*Bundle, error) {
	data, err := db.blobs.Get(ctx, locator)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle %q: %w", locator, err)
	}

	var wire wireBundle
	if err := db.codec.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to decode bundle %q: %w", locator, err)
	}

	bundle := &Bundle{
		Documents: make([]document.Document, len(wire.Documents)),
		Metadata: BundleMetadata{
			Name:          wire.Metadata.Name,
			DocumentCount: wire.Metadata.DocumentCount,
		},
	}
	if t, ok := document.ParseInstant(wire.Metadata.Created); ok {
		bundle.Metadata.Created = t
	}
	if t, ok := document.ParseInstant(wire.Metadata.LastUpdated); ok {
		bundle.Metadata.LastUpdated = t
	}
	for i, doc := range wire.Documents {
		bundle.Documents[i] = document.WireDecode(doc).(map[string]any)
	}
	return bundle, nil
}

// writeBundle encodes and stores a collection bundle, refreshing its local
// metadata.
func (db *DB) writeBundle(ctx context.Context, locator string, bundle *Bundle) error {
	now := time.Now()
	bundle.Metadata.LastUpdated = now
	bundle.Metadata.DocumentCount = len(bundle.Documents)
	if bundle.Metadata.Created.IsZero() {
		bundle.Metadata.Created = now
	}

	wire := wireBundle{
		Documents: make([]map[string]any, len(bundle.Documents)),
		Metadata: wireBundleMetadata{
			Name:          bundle.Metadata.Name,
			Created:       document.FormatInstant(bundle.Metadata.Created),
			LastUpdated:   document.FormatInstant(bundle.Metadata.LastUpdated),
			DocumentCount: len(bundle.Documents),
		},
	}
	for i, doc := range bundle.Documents {
		wire.Documents[i] = document.WireEncode(doc).(map[string]any)
	}

	data, err := db.codec.Marshal(wire)
	if err != nil {
		return fmt.Errorf("failed to encode bundle %q: %w", locator, err)
	}
	if err := db.blobs.Put(ctx, locator, data); err != nil {
		return fmt.Errorf("failed to write bundle %q: %w", locator, err)
	}
	return nil
}

// createBundle stores a fresh, empty bundle and returns its locator.
func (db *DB) createBundle(ctx context.Context, name string) (string, error) {
	locator := bundleLocator(name)
	bundle := &Bundle{
		Documents: []document.Document{},
		Metadata:  BundleMetadata{Name: name},
	}
	if err := db.writeBundle(ctx, locator, bundle); err != nil {
		return "", err
	}
	return locator, nil
}
