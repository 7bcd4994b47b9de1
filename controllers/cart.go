package controllers

import (
	"net/http"

	"storefront-api/cart"
	"storefront-api/utils"

	"github.com/gorilla/mux"
)

// CartController exposes the caller's cart
type CartController struct {
	Base
	Cart *cart.Service
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  *int   `json:"quantity"`
}

// GetCart retrieves the user's cart
func (cc *CartController) GetCart(w http.ResponseWriter, r *http.Request) {
	me, ok := cc.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	view, err := cc.Cart.Get(ctx, me.ID)
	if err != nil {
		cc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "", view)
}

// AddToCart adds a product to the user's cart
func (cc *CartController) AddToCart(w http.ResponseWriter, r *http.Request) {
	me, ok := cc.caller(w, r)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		cc.fail(w, err)
		return
	}
	if req.ProductID == "" {
		cc.fail(w, utils.BadRequest("Product ID is required"))
		return
	}
	productID, err := utils.ParseID(req.ProductID, "product")
	if err != nil {
		cc.fail(w, err)
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	view, err := cc.Cart.Add(ctx, me.ID, productID, req.Quantity)
	if err != nil {
		cc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "Product added to cart", view)
}

// UpdateCartItem sets the quantity of a product already in the cart
func (cc *CartController) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	me, ok := cc.caller(w, r)
	if !ok {
		return
	}
	var req cartItemRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		cc.fail(w, err)
		return
	}
	if req.ProductID == "" || req.Quantity == nil {
		cc.fail(w, utils.BadRequest("Product ID and quantity are required"))
		return
	}
	productID, err := utils.ParseID(req.ProductID, "product")
	if err != nil {
		cc.fail(w, err)
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	view, err := cc.Cart.Update(ctx, me.ID, productID, req.Quantity)
	if err != nil {
		cc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "Cart updated", view)
}

// RemoveFromCart removes a product from the user's cart
func (cc *CartController) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	me, ok := cc.caller(w, r)
	if !ok {
		return
	}
	productID, err := utils.ParseID(mux.Vars(r)["productId"], "product")
	if err != nil {
		cc.fail(w, err)
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	view, err := cc.Cart.Remove(ctx, me.ID, productID)
	if err != nil {
		cc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "Product removed from cart", view)
}

// ClearCart empties the user's cart
func (cc *CartController) ClearCart(w http.ResponseWriter, r *http.Request) {
	me, ok := cc.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	view, err := cc.Cart.Clear(ctx, me.ID)
	if err != nil {
		cc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "Cart cleared", view)
}
