package docgo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hupe1980/docgo/coordinator"
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/masterindex"
	"github.com/hupe1980/docgo/query"
	"github.com/hupe1980/docgo/update"
)

// Collection is a handle over one registered collection. All mutations run
// under the collection's advisory lock via the coordinator; reads go straight
// to the current bundle.
type Collection struct {
	db     *DB
	name   string
	coord  *coordinator.Coordinator
	query  *query.Engine
	update *update.Engine
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// UpdateResult reports the outcome of an update operation. ModifiedCount
// counts documents an operator was applied to, which includes bound
// operators that resolved to a tie.
type UpdateResult struct {
	MatchedCount  int
	ModifiedCount int
}

// InsertOne stores one document and returns its identity. A missing identity
// field gets a generated one; a caller-provided identity must be a string
// and must not collide with a stored document.
func (c *Collection) InsertOne(ctx context.Context, doc document.Document) (string, error) {
	id, err := coordinator.Coordinate(ctx, c.coord, "insertOne",
		func(ctx context.Context, meta masterindex.CollectionMetadata) (string, coordinator.Commit, error) {
			bundle, err := c.db.readBundle(ctx, meta.FileLocator)
			if err != nil {
				return "", noCommit(), err
			}

			stored, id, err := c.prepareInsert(doc, bundle.Documents, nil)
			if err != nil {
				return "", noCommit(), err
			}

			bundle.Documents = append(bundle.Documents, stored)
			if err := c.db.writeBundle(ctx, meta.FileLocator, bundle); err != nil {
				return "", noCommit(), err
			}
			return id, coordinator.Commit{DocumentCount: len(bundle.Documents)}, nil
		})
	c.db.logger.LogOperation(ctx, "insertOne", c.name, 1, err)
	return id, translateError(err)
}

// InsertMany stores documents atomically: either every document is appended
// or none is. Returned identities are in input order.
func (c *Collection) InsertMany(ctx context.Context, docs []document.Document) ([]string, error) {
	ids, err := coordinator.Coordinate(ctx, c.coord, "insertMany",
		func(ctx context.Context, meta masterindex.CollectionMetadata) ([]string, coordinator.Commit, error) {
			bundle, err := c.db.readBundle(ctx, meta.FileLocator)
			if err != nil {
				return nil, noCommit(), err
			}

			batch := make([]document.Document, 0, len(docs))
			ids := make([]string, 0, len(docs))
			seen := make(map[string]struct{}, len(docs))
			for _, doc := range docs {
				stored, id, err := c.prepareInsert(doc, bundle.Documents, seen)
				if err != nil {
					return nil, noCommit(), err
				}
				seen[id] = struct{}{}
				batch = append(batch, stored)
				ids = append(ids, id)
			}

			bundle.Documents = append(bundle.Documents, batch...)
			if err := c.db.writeBundle(ctx, meta.FileLocator, bundle); err != nil {
				return nil, noCommit(), err
			}
			return ids, coordinator.Commit{DocumentCount: len(bundle.Documents)}, nil
		})
	c.db.logger.LogOperation(ctx, "insertMany", c.name, len(ids), err)
	return ids, translateError(err)
}

// prepareInsert validates a document, settles its identity, and checks it
// against the stored documents (and the in-flight batch, if any).
func (c *Collection) prepareInsert(doc document.Document, existing []document.Document, batch map[string]struct{}) (document.Document, string, error) {
	if err := document.Validate(doc); err != nil {
		return nil, "", err
	}

	stored := document.Clone(doc)
	id, ok := stored[document.IDField]
	if !ok {
		generated := uuid.NewString()
		stored[document.IDField] = generated
		id = generated
	}
	sid, ok := id.(string)
	if !ok || sid == "" {
		return nil, "", fmt.Errorf("%w: %s must be a non-empty string", ErrInvalidDocument, document.IDField)
	}

	if _, dup := batch[sid]; dup {
		return nil, "", fmt.Errorf("%w: %q", ErrDuplicateID, sid)
	}
	for _, d := range existing {
		if d[document.IDField] == sid {
			return nil, "", fmt.Errorf("%w: %q", ErrDuplicateID, sid)
		}
	}
	return stored, sid, nil
}

// Find returns every matching document in insertion order. A nil or empty
// query matches all documents.
func (c *Collection) Find(ctx context.Context, q map[string]any) ([]document.Document, error) {
	bundle, err := c.loadBundle(ctx)
	if err != nil {
		return nil, translateError(err)
	}
	matches, err := c.query.Execute(bundle.Documents, q)
	if err != nil {
		return nil, translateError(err)
	}
	return matches, nil
}

// FindOne returns the first matching document, or ErrNotFound.
func (c *Collection) FindOne(ctx context.Context, q map[string]any) (document.Document, error) {
	matches, err := c.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no document matches in %q", ErrNotFound, c.name)
	}
	return matches[0], nil
}

// CountDocuments counts matching documents without taking the collection
// lock; like Find, it observes the most recent committed bundle.
func (c *Collection) CountDocuments(ctx context.Context, q map[string]any) (int, error) {
	matches, err := c.Find(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

// UpdateOne applies an operator specification to the first matching document.
func (c *Collection) UpdateOne(ctx context.Context, q, spec map[string]any) (UpdateResult, error) {
	res, err := c.coordinatedUpdate(ctx, "updateOne", q, spec, true)
	c.db.logger.LogOperation(ctx, "updateOne", c.name, res.ModifiedCount, err)
	return res, translateError(err)
}

// UpdateMany applies an operator specification to every matching document.
func (c *Collection) UpdateMany(ctx context.Context, q, spec map[string]any) (UpdateResult, error) {
	res, err := c.coordinatedUpdate(ctx, "updateMany", q, spec, false)
	c.db.logger.LogOperation(ctx, "updateMany", c.name, res.ModifiedCount, err)
	return res, translateError(err)
}

// ReplaceOne swaps the first matching document for the replacement, which
// must not contain update operators. The stored identity is preserved.
func (c *Collection) ReplaceOne(ctx context.Context, q, replacement map[string]any) (UpdateResult, error) {
	isOp, err := update.IsOperatorDocument(replacement)
	if err != nil {
		return UpdateResult{}, translateError(err)
	}
	if isOp {
		return UpdateResult{}, fmt.Errorf("%w: replacement document must not contain update operators", ErrInvalidUpdate)
	}
	if err := document.Validate(replacement); err != nil {
		return UpdateResult{}, translateError(err)
	}

	res, err := c.coordinatedUpdate(ctx, "replaceOne", q, replacement, true)
	c.db.logger.LogOperation(ctx, "replaceOne", c.name, res.ModifiedCount, err)
	return res, translateError(err)
}

// coordinatedUpdate is the shared path of UpdateOne, UpdateMany, and
// ReplaceOne. The bundle is rewritten only when at least one document
// structurally changed; the commit (fresh token, lastUpdated) happens either
// way.
func (c *Collection) coordinatedUpdate(ctx context.Context, operation string, q, spec map[string]any, single bool) (UpdateResult, error) {
	return coordinator.Coordinate(ctx, c.coord, operation,
		func(ctx context.Context, meta masterindex.CollectionMetadata) (UpdateResult, coordinator.Commit, error) {
			bundle, err := c.db.readBundle(ctx, meta.FileLocator)
			if err != nil {
				return UpdateResult{}, noCommit(), err
			}

			var result UpdateResult
			changed := false
			for i, doc := range bundle.Documents {
				ok, err := c.query.Matches(doc, q)
				if err != nil {
					return UpdateResult{}, noCommit(), err
				}
				if !ok {
					continue
				}

				result.MatchedCount++
				updated, err := c.update.Apply(doc, spec)
				if err != nil {
					return UpdateResult{}, noCommit(), err
				}
				result.ModifiedCount++
				if !document.Equal(updated, doc, document.EqualOptions{}) {
					bundle.Documents[i] = updated
					changed = true
				}
				if single {
					break
				}
			}

			if changed {
				if err := c.db.writeBundle(ctx, meta.FileLocator, bundle); err != nil {
					return UpdateResult{}, noCommit(), err
				}
			}
			return result, coordinator.Commit{DocumentCount: len(bundle.Documents)}, nil
		})
}

// DeleteOne removes the first matching document, returning how many were
// removed (0 or 1).
func (c *Collection) DeleteOne(ctx context.Context, q map[string]any) (int, error) {
	n, err := c.coordinatedDelete(ctx, "deleteOne", q, true)
	c.db.logger.LogOperation(ctx, "deleteOne", c.name, n, err)
	return n, translateError(err)
}

// DeleteMany removes every matching document, returning how many were
// removed.
func (c *Collection) DeleteMany(ctx context.Context, q map[string]any) (int, error) {
	n, err := c.coordinatedDelete(ctx, "deleteMany", q, false)
	c.db.logger.LogOperation(ctx, "deleteMany", c.name, n, err)
	return n, translateError(err)
}

func (c *Collection) coordinatedDelete(ctx context.Context, operation string, q map[string]any, single bool) (int, error) {
	return coordinator.Coordinate(ctx, c.coord, operation,
		func(ctx context.Context, meta masterindex.CollectionMetadata) (int, coordinator.Commit, error) {
			bundle, err := c.db.readBundle(ctx, meta.FileLocator)
			if err != nil {
				return 0, noCommit(), err
			}

			kept := bundle.Documents[:0:0]
			removed := 0
			for _, doc := range bundle.Documents {
				if single && removed == 1 {
					kept = append(kept, doc)
					continue
				}
				ok, err := c.query.Matches(doc, q)
				if err != nil {
					return 0, noCommit(), err
				}
				if ok {
					removed++
					continue
				}
				kept = append(kept, doc)
			}

			if removed > 0 {
				bundle.Documents = kept
				if err := c.db.writeBundle(ctx, meta.FileLocator, bundle); err != nil {
					return 0, noCommit(), err
				}
			}
			return removed, coordinator.Commit{DocumentCount: len(bundle.Documents)}, nil
		})
}

// loadBundle fetches the current bundle for reads, reloading the master index
// first so a commit from another run is observed.
func (c *Collection) loadBundle(ctx context.Context) (*Bundle, error) {
	c.db.index.Invalidate()
	meta, err := c.db.index.GetCollection(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return c.db.readBundle(ctx, meta.FileLocator)
}

// noCommit marks a callback result that must not touch the stored metadata.
func noCommit() coordinator.Commit {
	return coordinator.Commit{DocumentCount: -1}
}
