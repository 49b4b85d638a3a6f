package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotStarted = errors.New("mongo backend not started")

// Backend is the tenant.Backend served by MongoDB.
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
	logger apt.Logger
	config *apt.Config
}

func NewBackend(config *apt.Config, logger apt.Logger) *Backend {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Backend{
		logger: logger,
		config: config,
	}
}

func (b *Backend) Start(ctx context.Context) error {
	connString := b.config.GetStringOrDef("db.mongo.url", "mongodb://localhost:27017")
	dbName := b.config.GetStringOrDef("db.mongo.name", "ordering")

	clientOptions := options.Client().ApplyURI(connString).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	b.client = client
	b.db = client.Database(dbName)

	if err := EnsureIndexes(ctx, b.db); err != nil {
		return err
	}

	b.logger.Infof("Connected to MongoDB: %s, database: %s", connString, dbName)
	return nil
}

func (b *Backend) Stop(ctx context.Context) error {
	if b.client != nil {
		if err := b.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		b.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (b *Backend) GetDatabase() *mongo.Database {
	return b.db
}

func (b *Backend) Collection(name string) tenant.Collection {
	return &collection{backend: b, name: name}
}

type collection struct {
	backend *Backend
	name    string
}

func (c *collection) coll() (*mongo.Collection, error) {
	if c.backend.db == nil {
		return nil, ErrNotStarted
	}
	return c.backend.db.Collection(c.name), nil
}

func (c *collection) Find(ctx context.Context, filter bson.M, opts tenant.FindOptions) ([]bson.M, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, orEmpty(filter), findOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("cannot find in %s: %w", c.name, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("cannot decode %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	var doc bson.M
	err = coll.FindOne(ctx, orEmpty(filter)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot find one in %s: %w", c.name, err)
	}
	return doc, nil
}

func (c *collection) InsertOne(ctx context.Context, doc bson.M) error {
	coll, err := c.coll()
	if err != nil {
		return err
	}
	if _, err := coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("cannot insert into %s: %w", c.name, err)
	}
	return nil
}

func (c *collection) UpdateOne(ctx context.Context, filter bson.M, update tenant.Update) (tenant.UpdateResult, error) {
	coll, err := c.coll()
	if err != nil {
		return tenant.UpdateResult{}, err
	}

	var res *mongo.UpdateResult
	switch u := update.(type) {
	case tenant.Set:
		res, err = coll.UpdateOne(ctx, orEmpty(filter), setModifier(u))
	case tenant.Replace:
		res, err = coll.UpdateOne(ctx, orEmpty(filter), replacePipeline(u))
	default:
		return tenant.UpdateResult{}, fmt.Errorf("cannot update %s with %T: %w", c.name, update, tenant.ErrUnsupportedUpdate)
	}
	if err != nil {
		return tenant.UpdateResult{}, fmt.Errorf("cannot update %s: %w", c.name, err)
	}

	return tenant.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	coll, err := c.coll()
	if err != nil {
		return 0, err
	}
	res, err := coll.DeleteOne(ctx, orEmpty(filter))
	if err != nil {
		return 0, fmt.Errorf("cannot delete from %s: %w", c.name, err)
	}
	return res.DeletedCount, nil
}

// replacePipeline swaps the document body in one update while keeping the
// stored _id and created_at. The body is wrapped in $literal so values that
// start with "$" are not read as field paths.
func replacePipeline(u tenant.Replace) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$replaceWith", Value: bson.M{"$mergeObjects": bson.A{
			bson.M{"$literal": u.Doc},
			bson.M{
				tenant.FieldID:        "$" + tenant.FieldID,
				tenant.FieldCreatedAt: "$" + tenant.FieldCreatedAt,
			},
		}}}},
	}
}

func setModifier(u tenant.Set) bson.M {
	return bson.M{"$set": u.Fields}
}

func findOptions(opts tenant.FindOptions) *options.FindOptions {
	fo := options.Find()
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, s := range opts.Sort {
			dir := 1
			if s.Desc {
				dir = -1
			}
			sort = append(sort, bson.E{Key: s.Field, Value: dir})
		}
		fo.SetSort(sort)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	return fo
}

func orEmpty(filter bson.M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return filter
}
