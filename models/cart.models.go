package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CartItem represents a line in the cart. Quantity is always at least 1.
type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart represents a user's shopping cart. Version is bumped on every write
// and used as the compare-and-swap token.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Items     []CartItem         `bson:"products" json:"products"`
	Version   int64              `bson:"version" json:"-"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Find returns the index of the line for productID, or -1.
func (c *Cart) Find(productID primitive.ObjectID) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// ProductSummary is the subset of a product shown inside a cart.
type ProductSummary struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Price       float64            `json:"price"`
	Description string             `json:"description,omitempty"`
}

// CartLine is a cart item with its product resolved for display.
// Product is nil when the product no longer exists.
type CartLine struct {
	ProductID primitive.ObjectID `json:"productId"`
	Product   *ProductSummary    `json:"product"`
	Quantity  int                `json:"quantity"`
}

// CartView is the response shape of a cart.
type CartView struct {
	ID        *primitive.ObjectID `json:"id,omitempty"`
	UserID    primitive.ObjectID  `json:"userId"`
	Products  []CartLine          `json:"products"`
	CreatedAt *time.Time          `json:"createdAt,omitempty"`
	UpdatedAt *time.Time          `json:"updatedAt,omitempty"`
}
