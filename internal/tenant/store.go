// Package tenant isolates documents by tenant on top of a plain document
// backend and resolves the tenant of each incoming request.
package tenant

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	FieldID        = "_id"
	FieldTenantID  = "tenant_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var ErrUnsupportedUpdate = errors.New("unsupported update variant")

// Backend hands out unscoped collections. Implementations must make
// UpdateOne atomic per document so filters can act as compare-and-set guards.
type Backend interface {
	Collection(name string) Collection
}

type Collection interface {
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error)
	// FindOne returns nil and no error when nothing matches.
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	InsertOne(ctx context.Context, doc bson.M) error
	UpdateOne(ctx context.Context, filter bson.M, update Update) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
}

type Sort struct {
	Field string
	Desc  bool
}

type FindOptions struct {
	Sort  []Sort
	Limit int64
}

type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Update is either Set or Replace.
type Update interface {
	isUpdate()
}

// Set overwrites the listed top-level fields and leaves the rest untouched.
type Set struct {
	Fields bson.M
}

// Replace swaps the whole document body, keeping its identity.
type Replace struct {
	Doc bson.M
}

func (Set) isUpdate()     {}
func (Replace) isUpdate() {}

func clone(m bson.M) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
