// Package cart reconciles cart mutations against the persisted cart.
//
// Every mutation is a read-modify-write of the user's cart document. Writes
// are compare-and-swap on the cart version, so two concurrent adds of the
// same product both land instead of one overwriting the other.
package cart

import (
	"context"
	"errors"
	"fmt"

	"storefront-api/models"
	"storefront-api/store"
	"storefront-api/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultMaxAttempts = 5

// MaxQuantity caps the quantity of a single cart line.
const MaxQuantity = 10000

// ProductLookup is the part of the catalog the cart needs.
type ProductLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

// Service implements the cart operations for a single user at a time.
type Service struct {
	carts       store.CartStore
	products    ProductLookup
	maxAttempts int
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts bounds how many times a mutation is re-applied after
// losing a write race.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewService(carts store.CartStore, products ProductLookup, opts ...Option) *Service {
	s := &Service{carts: carts, products: products, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the user's cart. A user without a cart gets an empty one.
func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) (*models.CartView, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	if c == nil {
		return &models.CartView{UserID: userID, Products: []models.CartLine{}}, nil
	}
	return s.view(ctx, c)
}

// Add puts quantity units of productID in the cart, creating the cart on
// first use. A nil quantity means 1. Adding a product already in the cart
// increases its quantity.
func (s *Service) Add(ctx context.Context, userID, productID primitive.ObjectID, quantity *int) (*models.CartView, error) {
	q := 1
	if quantity != nil {
		q = *quantity
	}
	if q < 1 {
		return nil, utils.BadRequest("Quantity must be at least 1")
	}
	if q > MaxQuantity {
		return nil, errTooMany
	}
	p, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return nil, utils.Internal(err)
	}
	if p == nil {
		return nil, utils.NotFound("Product not found")
	}

	c, err := s.mutate(ctx, userID, true, func(c *models.Cart) error {
		return addItem(c, productID, q)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Update sets the quantity of a line. A quantity of zero or less removes it;
// one above MaxQuantity is rejected.
func (s *Service) Update(ctx context.Context, userID, productID primitive.ObjectID, quantity *int) (*models.CartView, error) {
	if productID.IsZero() || quantity == nil {
		return nil, utils.BadRequest("Product ID and quantity are required")
	}
	c, err := s.mutate(ctx, userID, false, func(c *models.Cart) error {
		return updateItem(c, productID, *quantity)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Remove deletes one line, keeping the order of the rest.
func (s *Service) Remove(ctx context.Context, userID, productID primitive.ObjectID) (*models.CartView, error) {
	c, err := s.mutate(ctx, userID, false, func(c *models.Cart) error {
		return removeItem(c, productID)
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// Clear empties the cart. The cart itself is kept.
func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) (*models.CartView, error) {
	c, err := s.mutate(ctx, userID, false, func(c *models.Cart) error {
		c.Items = []models.CartItem{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.view(ctx, c)
}

// mutate loads the cart, applies fn and writes the result back, re-reading
// and re-applying when another writer got there first. With create set, a
// missing cart is created; otherwise it is a NotFound.
func (s *Service) mutate(ctx context.Context, userID primitive.ObjectID, create bool, fn func(*models.Cart) error) (*models.Cart, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, utils.Internal(err)
		}
		c, err := s.carts.FindByUser(ctx, userID)
		if err != nil {
			return nil, utils.Internal(err)
		}

		if c == nil {
			if !create {
				return nil, utils.NotFound("Cart not found")
			}
			c = &models.Cart{UserID: userID, Items: []models.CartItem{}}
			if err := fn(c); err != nil {
				return nil, err
			}
			err = s.carts.Create(ctx, c)
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			if err != nil {
				return nil, utils.Internal(err)
			}
			return c, nil
		}

		if err := fn(c); err != nil {
			return nil, err
		}
		err = s.carts.Replace(ctx, c)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, utils.Internal(err)
		}
		return c, nil
	}
	return nil, utils.Conflict("Cart was modified concurrently, please retry")
}

var errTooMany = utils.BadRequest(fmt.Sprintf("Quantity cannot exceed %d", MaxQuantity))

func addItem(c *models.Cart, productID primitive.ObjectID, q int) error {
	if i := c.Find(productID); i >= 0 {
		if c.Items[i].Quantity > MaxQuantity-q {
			return errTooMany
		}
		c.Items[i].Quantity += q
		return nil
	}
	c.Items = append(c.Items, models.CartItem{ProductID: productID, Quantity: q})
	return nil
}

func updateItem(c *models.Cart, productID primitive.ObjectID, q int) error {
	i := c.Find(productID)
	if i < 0 {
		return utils.NotFound("Product not found in cart")
	}
	if q <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return nil
	}
	if q > MaxQuantity {
		return errTooMany
	}
	c.Items[i].Quantity = q
	return nil
}

func removeItem(c *models.Cart, productID primitive.ObjectID) error {
	i := c.Find(productID)
	if i < 0 {
		return utils.NotFound("Product not found in cart")
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

// view resolves each line's product for display. Lines whose product has
// since been deleted keep a nil product.
func (s *Service) view(ctx context.Context, c *models.Cart) (*models.CartView, error) {
	ids := make([]primitive.ObjectID, len(c.Items))
	for i, item := range c.Items {
		ids[i] = item.ProductID
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, utils.Internal(err)
	}
	byID := make(map[primitive.ObjectID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]models.CartLine, 0, len(c.Items))
	for _, item := range c.Items {
		line := models.CartLine{ProductID: item.ProductID, Quantity: item.Quantity}
		if p, ok := byID[item.ProductID]; ok {
			line.Product = &models.ProductSummary{ID: p.ID, Name: p.Name, Price: p.Price, Description: p.Description}
		}
		lines = append(lines, line)
	}
	id, created, updated := c.ID, c.CreatedAt, c.UpdatedAt
	return &models.CartView{ID: &id, UserID: c.UserID, Products: lines, CreatedAt: &created, UpdatedAt: &updated}, nil
}
