// Package docgo is an embedded, blob-backed document database with a
// MongoDB-style query and update dialect.
//
// docgo is built for hosts with no native database service and no shared
// memory between concurrent runs: every logical operation is an independent,
// stateless execution against two durable external resources, a blob store
// holding collection bundles and a small durable key-value store holding the
// master index used for cross-run coordination. Mutations look serialized
// across runs through advisory locks with lazy timeout expiry and
// modification-token optimistic concurrency; there is no platform lock
// manager and no transaction log.
//
// Example:
//
//	db, err := docgo.Open(ctx, blobstore.NewLocalStore("./data"), kv.NewMemory())
//	if err != nil { ... }
//
//	users, err := db.CreateCollection(ctx, "users")
//	if err != nil { ... }
//
//	id, err := users.InsertOne(ctx, map[string]any{"name": "Ada", "age": 36})
//	if err != nil { ... }
//
//	matches, err := users.Find(ctx, map[string]any{"age": map[string]any{"$gt": 30}})
package docgo
