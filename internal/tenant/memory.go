package tenant

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrDuplicateID = errors.New("duplicate document id")

// MemoryBackend keeps documents in process. Every operation runs under one
// backend-wide lock, so UpdateOne is atomic.
type MemoryBackend struct {
	mu          sync.Mutex
	collections map[string][]bson.M
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string][]bson.M)}
}

func (b *MemoryBackend) Collection(name string) Collection {
	return &memoryCollection{backend: b, name: name}
}

// Drop removes every document of the named collections, or all of them when
// no name is given.
func (b *MemoryBackend) Drop(names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(names) == 0 {
		b.collections = make(map[string][]bson.M)
		return
	}
	for _, n := range names {
		delete(b.collections, n)
	}
}

type memoryCollection struct {
	backend *MemoryBackend
	name    string
}

func (c *memoryCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := normalize(filter)
	if err != nil {
		return nil, fmt.Errorf("cannot find in %s: %w", c.name, err)
	}

	c.backend.mu.Lock()
	var out []bson.M
	for _, doc := range c.backend.collections[c.name] {
		if matches(doc, f) {
			out = append(out, deepCopy(doc))
		}
	}
	c.backend.mu.Unlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, s := range opts.Sort {
				cmp, _ := compare(out[i][s.Field], out[j][s.Field])
				if cmp == 0 {
					continue
				}
				if s.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}
	if opts.Limit > 0 && int64(len(out)) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	docs, err := c.Find(ctx, filter, FindOptions{Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc bson.M) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d, err := normalize(doc)
	if err != nil {
		return fmt.Errorf("cannot insert into %s: %w", c.name, err)
	}
	if _, ok := d[FieldID]; !ok {
		d[FieldID] = uuid.NewString()
	}

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	for _, existing := range c.backend.collections[c.name] {
		if equal(existing[FieldID], d[FieldID]) {
			return fmt.Errorf("cannot insert %v into %s: %w", d[FieldID], c.name, ErrDuplicateID)
		}
	}
	c.backend.collections[c.name] = append(c.backend.collections[c.name], d)
	return nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter bson.M, update Update) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, err
	}
	f, err := normalize(filter)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("cannot update %s: %w", c.name, err)
	}

	var fields, replacement bson.M
	switch u := update.(type) {
	case Set:
		fields, err = normalize(u.Fields)
	case Replace:
		replacement, err = normalize(u.Doc)
	default:
		err = ErrUnsupportedUpdate
	}
	if err != nil {
		return UpdateResult{}, fmt.Errorf("cannot update %s: %w", c.name, err)
	}

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	docs := c.backend.collections[c.name]
	for i, doc := range docs {
		if !matches(doc, f) {
			continue
		}
		if replacement != nil {
			replacement[FieldID] = doc[FieldID]
			if created, ok := doc[FieldCreatedAt]; ok {
				replacement[FieldCreatedAt] = created
			}
			docs[i] = replacement
			return UpdateResult{Matched: 1, Modified: 1}, nil
		}
		for k, v := range fields {
			doc[k] = v
		}
		return UpdateResult{Matched: 1, Modified: 1}, nil
	}
	return UpdateResult{}, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := normalize(filter)
	if err != nil {
		return 0, fmt.Errorf("cannot delete from %s: %w", c.name, err)
	}

	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()

	docs := c.backend.collections[c.name]
	for i, doc := range docs {
		if matches(doc, f) {
			c.backend.collections[c.name] = append(docs[:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// normalize round-trips through bson so stored values have the same types
// the Mongo driver would hand back.
func normalize(m bson.M) (bson.M, error) {
	if m == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deepCopy(m bson.M) bson.M {
	out, err := normalize(m)
	if err != nil {
		return clone(m)
	}
	return out
}

func matches(doc, filter bson.M) bool {
	for key, cond := range filter {
		if key == "$or" {
			if !matchesAny(doc, cond) {
				return false
			}
			continue
		}

		val, present := doc[key]
		if ops, ok := operators(cond); ok {
			for op, arg := range ops {
				if !applyOperator(op, val, present, arg) {
					return false
				}
			}
			continue
		}

		if !present {
			if cond == nil {
				continue
			}
			return false
		}
		if !matchValue(val, cond) {
			return false
		}
	}
	return true
}

func matchesAny(doc bson.M, cond interface{}) bool {
	branches, ok := cond.(bson.A)
	if !ok {
		return false
	}
	for _, b := range branches {
		if m, ok := asDoc(b); ok && matches(doc, m) {
			return true
		}
	}
	return false
}

func operators(cond interface{}) (bson.M, bool) {
	m, ok := asDoc(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func applyOperator(op string, val interface{}, present bool, arg interface{}) bool {
	switch op {
	case "$ne":
		return !present || !matchValue(val, arg)
	case "$in":
		list, ok := arg.(bson.A)
		if !ok {
			return false
		}
		for _, candidate := range list {
			if present && matchValue(val, candidate) {
				return true
			}
		}
		return false
	case "$exists":
		want, _ := arg.(bool)
		return present == want
	case "$lt", "$lte", "$gt", "$gte":
		if !present {
			return false
		}
		cmp, ok := compare(val, arg)
		if !ok {
			return false
		}
		switch op {
		case "$lt":
			return cmp < 0
		case "$lte":
			return cmp <= 0
		case "$gt":
			return cmp > 0
		default:
			return cmp >= 0
		}
	default:
		return false
	}
}

func asDoc(v interface{}) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

// matchValue is equality plus array containment.
func matchValue(val, cond interface{}) bool {
	if equal(val, cond) {
		return true
	}
	if arr, ok := val.(bson.A); ok {
		for _, item := range arr {
			if equal(item, cond) {
				return true
			}
		}
	}
	return false
}

func equal(a, b interface{}) bool {
	if cmp, ok := compare(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers, strings, booleans and datetimes. Missing values
// sort first.
func compare(a, b interface{}) (int, bool) {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0, true
		case a == nil:
			return -1, true
		default:
			return 1, true
		}
	}

	if fa, ok := number(a); ok {
		fb, ok := number(b)
		if !ok {
			return 0, false
		}
		return cmpOrdered(fa, fb), true
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case primitive.DateTime:
		bv, ok := b.(primitive.DateTime)
		if !ok {
			return 0, false
		}
		return cmpOrdered(int64(av), int64(bv)), true
	}
	return 0, false
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
