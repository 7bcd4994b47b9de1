package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-api/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// caseInsensitive compares strings ignoring case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Mongo owns the client connection and hands out collection-backed stores.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials uri, checks the connection and selects database name.
func ConnectMongo(ctx context.Context, uri, name string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(name)}, nil
}

// Disconnect closes the client.
func (m *Mongo) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique indexes the stores rely on.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"categories": {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true).SetCollation(caseInsensitive)},
		},
		"products": {
			{Keys: bson.D{{Key: "categoryId", Value: 1}}},
			{Keys: bson.D{{Key: "vendorId", Value: 1}}},
		},
		"carts": {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, idx := range indexes {
		if _, err := m.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// Stores returns the mongo-backed stores.
func (m *Mongo) Stores() Stores {
	return Stores{
		Users:      mongoUsers{coll: m.db.Collection("users")},
		Categories: mongoCategories{coll: m.db.Collection("categories")},
		Products:   mongoProducts{coll: m.db.Collection("products")},
		Carts:      mongoCarts{coll: m.db.Collection("carts")},
		Health:     m,
	}
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOneOptions) (*T, error) {
	var doc T
	err := coll.FindOne(ctx, filter, opts...).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	return &doc, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", coll.Name(), err)
	}
	docs := []T{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read %s: %w", coll.Name(), err)
	}
	return docs, nil
}

func insert(ctx context.Context, coll *mongo.Collection, doc interface{}) error {
	_, err := coll.InsertOne(ctx, doc)
	return writeErr(coll, "insert", err)
}

func replace(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, doc interface{}) error {
	res, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err := writeErr(coll, "replace", err); err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func deleteByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) error {
	res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete from %s: %w", coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func writeErr(coll *mongo.Collection, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return fmt.Errorf("%s into %s: %w", op, coll.Name(), err)
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}

type mongoUsers struct{ coll *mongo.Collection }

func (s mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"_id": id})
}

func (s mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"email": strings.ToLower(email)})
}

func (s mongoUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return findOne[models.User](ctx, s.coll, bson.M{"username": username})
}

func (s mongoUsers) List(ctx context.Context) ([]models.User, error) {
	return findAll[models.User](ctx, s.coll, bson.M{}, options.Find().SetSort(newestFirst))
}

func (s mongoUsers) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt, u.UpdatedAt = now, now
	return insert(ctx, s.coll, u)
}

func (s mongoUsers) Save(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	return replace(ctx, s.coll, u.ID, u)
}

func (s mongoUsers) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}

type mongoCategories struct{ coll *mongo.Collection }

func (s mongoCategories) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error) {
	return findOne[models.Category](ctx, s.coll, bson.M{"_id": id})
}

func (s mongoCategories) FindByNameCI(ctx context.Context, name string) (*models.Category, error) {
	return findOne[models.Category](ctx, s.coll, bson.M{"name": name}, options.FindOne().SetCollation(caseInsensitive))
}

func (s mongoCategories) List(ctx context.Context) ([]models.Category, error) {
	return findAll[models.Category](ctx, s.coll, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetCollation(caseInsensitive))
}

func (s mongoCategories) Create(ctx context.Context, c *models.Category) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt, c.UpdatedAt = now, now
	return insert(ctx, s.coll, c)
}

func (s mongoCategories) Save(ctx context.Context, c *models.Category) error {
	c.UpdatedAt = time.Now().UTC()
	return replace(ctx, s.coll, c.ID, c)
}

func (s mongoCategories) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}

type mongoProducts struct{ coll *mongo.Collection }

func (s mongoProducts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	return findOne[models.Product](ctx, s.coll, bson.M{"_id": id})
}

func (s mongoProducts) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return findAll[models.Product](ctx, s.coll, bson.M{"_id": bson.M{"$in": ids}})
}

func (s mongoProducts) List(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	return findAll[models.Product](ctx, s.coll, productQuery(f), options.Find().SetSort(newestFirst))
}

func (s mongoProducts) Create(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	return insert(ctx, s.coll, p)
}

func (s mongoProducts) Save(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	return replace(ctx, s.coll, p.ID, p)
}

func (s mongoProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	return deleteByID(ctx, s.coll, id)
}

// productQuery translates a ProductFilter into a mongo filter document.
func productQuery(f ProductFilter) bson.M {
	q := bson.M{}
	if f.CategoryID != nil {
		q["categoryId"] = *f.CategoryID
	}
	if f.VendorID != nil {
		q["vendorId"] = *f.VendorID
	}
	if f.InStock != nil {
		q["inStock"] = *f.InStock
	}
	price := bson.M{}
	if f.MinPrice != nil {
		price["$gte"] = *f.MinPrice
	}
	if f.MaxPrice != nil {
		price["$lte"] = *f.MaxPrice
	}
	if len(price) > 0 {
		q["price"] = price
	}
	return q
}

type mongoCarts struct{ coll *mongo.Collection }

func (s mongoCarts) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	return findOne[models.Cart](ctx, s.coll, bson.M{"userId": userID})
}

func (s mongoCarts) Create(ctx context.Context, c *models.Cart) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return insert(ctx, s.coll, c)
}

func (s mongoCarts) Replace(ctx context.Context, c *models.Cart) error {
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	now := time.Now().UTC()
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": c.ID, "version": c.Version},
		bson.M{
			"$set": bson.M{"products": c.Items, "updatedAt": now},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	c.Version++
	c.UpdatedAt = now
	return nil
}
