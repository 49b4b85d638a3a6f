package tenant

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Encode turns a bson-tagged struct into a document.
func Encode(v interface{}) (bson.M, error) {
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cannot encode document: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot encode document: %w", err)
	}
	return doc, nil
}

func Decode[T any](doc bson.M) (T, error) {
	var out T
	data, err := bson.Marshal(doc)
	if err != nil {
		return out, fmt.Errorf("cannot decode document: %w", err)
	}
	if err := bson.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("cannot decode document: %w", err)
	}
	return out, nil
}

func FindAll[T any](ctx context.Context, c Collection, filter bson.M, opts FindOptions) ([]T, error) {
	docs, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		v, err := Decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// FindOne returns nil and no error when nothing matches.
func FindOne[T any](ctx context.Context, c Collection, filter bson.M) (*T, error) {
	doc, err := c.FindOne(ctx, filter)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	v, err := Decode[T](doc)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
