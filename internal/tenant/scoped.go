package tenant

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Scoped is a view of a backend restricted to one tenant.
type Scoped struct {
	backend  Backend
	tenantID string
	now      func() time.Time
}

func Scope(backend Backend, tenantID string) *Scoped {
	return &Scoped{
		backend:  backend,
		tenantID: tenantID,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scoped) TenantID() string {
	return s.tenantID
}

func (s *Scoped) Collection(name string) Collection {
	return &scopedCollection{scope: s, inner: s.backend.Collection(name)}
}

type scopedCollection struct {
	scope *Scoped
	inner Collection
}

func (c *scopedCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	return c.inner.Find(ctx, c.filter(filter), opts)
}

func (c *scopedCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	return c.inner.FindOne(ctx, c.filter(filter))
}

func (c *scopedCollection) InsertOne(ctx context.Context, doc bson.M) error {
	now := c.scope.now()
	scoped := clone(doc)
	scoped[FieldTenantID] = c.scope.tenantID
	scoped[FieldCreatedAt] = now
	scoped[FieldUpdatedAt] = now
	return c.inner.InsertOne(ctx, scoped)
}

func (c *scopedCollection) UpdateOne(ctx context.Context, filter bson.M, update Update) (UpdateResult, error) {
	scoped, err := c.update(update)
	if err != nil {
		return UpdateResult{}, err
	}
	return c.inner.UpdateOne(ctx, c.filter(filter), scoped)
}

func (c *scopedCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	return c.inner.DeleteOne(ctx, c.filter(filter))
}

// filter pins the tenant, dropping any tenant_id the caller supplied at the
// top level or inside $or, $and and $nor branches.
func (c *scopedCollection) filter(filter bson.M) bson.M {
	out := make(bson.M, len(filter)+1)
	for k, v := range filter {
		switch k {
		case FieldTenantID:
			continue
		case "$or", "$and", "$nor":
			out[k] = stripBranches(v)
		default:
			out[k] = v
		}
	}
	out[FieldTenantID] = c.scope.tenantID
	return out
}

func stripBranches(v interface{}) interface{} {
	var branches []bson.M
	switch b := v.(type) {
	case []bson.M:
		branches = b
	case bson.A:
		for _, item := range b {
			if m, ok := item.(bson.M); ok {
				branches = append(branches, m)
			}
		}
	case []interface{}:
		for _, item := range b {
			if m, ok := item.(bson.M); ok {
				branches = append(branches, m)
			}
		}
	default:
		return v
	}

	out := make([]bson.M, 0, len(branches))
	for _, branch := range branches {
		cleaned := clone(branch)
		delete(cleaned, FieldTenantID)
		out = append(out, cleaned)
	}
	return out
}

func (c *scopedCollection) update(update Update) (Update, error) {
	now := c.scope.now()

	switch u := update.(type) {
	case Set:
		fields := clone(u.Fields)
		delete(fields, FieldTenantID)
		delete(fields, FieldID)
		delete(fields, FieldCreatedAt)
		fields[FieldUpdatedAt] = now
		return Set{Fields: fields}, nil
	case Replace:
		doc := clone(u.Doc)
		delete(doc, FieldID)
		delete(doc, FieldCreatedAt)
		doc[FieldTenantID] = c.scope.tenantID
		doc[FieldUpdatedAt] = now
		return Replace{Doc: doc}, nil
	default:
		return nil, fmt.Errorf("cannot scope update %T: %w", update, ErrUnsupportedUpdate)
	}
}

// CrossTenantReader reads documents regardless of tenant. Reserved for
// background jobs that have to enumerate work across all tenants.
type CrossTenantReader struct {
	backend Backend
}

func CrossTenant(backend Backend) *CrossTenantReader {
	return &CrossTenantReader{backend: backend}
}

func (r *CrossTenantReader) Find(ctx context.Context, collection string, filter bson.M, opts FindOptions) ([]bson.M, error) {
	return r.backend.Collection(collection).Find(ctx, filter, opts)
}
