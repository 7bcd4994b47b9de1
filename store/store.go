// Package store persists users, the catalog and carts. Lookups return a nil
// record and a nil error when nothing matches; writes report the sentinel
// errors below.
package store

import (
	"context"
	"errors"

	"storefront-api/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrDuplicate is returned when a write violates a uniqueness rule.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrNotFound is returned when a write targets a missing document.
	ErrNotFound = errors.New("store: document not found")
	// ErrVersionConflict is returned by CartStore.Replace when the cart
	// changed since it was read.
	ErrVersionConflict = errors.New("store: version conflict")
)

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type CategoryStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
	// FindByNameCI matches name ignoring case.
	FindByNameCI(ctx context.Context, name string) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Save(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	// FindByIDs returns the products that exist among ids, in no
	// particular order.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, f ProductFilter) ([]models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Save(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// CartStore keeps one versioned cart per user.
type CartStore interface {
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	// Create inserts a new cart. ErrDuplicate means the user already has one.
	Create(ctx context.Context, c *models.Cart) error
	// Replace writes c's items if the stored version still equals c.Version,
	// then bumps c.Version. Otherwise it returns ErrVersionConflict.
	Replace(ctx context.Context, c *models.Cart) error
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores bundles every store the API needs.
type Stores struct {
	Users      UserStore
	Categories CategoryStore
	Products   ProductStore
	Carts      CartStore
	Health     Pinger
}

// ProductFilter narrows a product listing. Nil fields do not filter.
type ProductFilter struct {
	CategoryID *primitive.ObjectID
	VendorID   *primitive.ObjectID
	InStock    *bool
	MinPrice   *float64
	MaxPrice   *float64
}

// Match reports whether p passes the filter.
func (f ProductFilter) Match(p models.Product) bool {
	if f.CategoryID != nil && p.CategoryID != *f.CategoryID {
		return false
	}
	if f.VendorID != nil && p.VendorID != *f.VendorID {
		return false
	}
	if f.InStock != nil && p.InStock != *f.InStock {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}
