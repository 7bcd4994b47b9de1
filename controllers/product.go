package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storefront-api/access"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/store"
	"storefront-api/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductController handles product-related requests
type ProductController struct {
	Base
	Products   store.ProductStore
	Categories store.CategoryStore
}

type productRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Description string   `json:"description" validate:"max=2000"`
	CategoryID  string   `json:"categoryId" validate:"required"`
	InStock     *bool    `json:"inStock"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
}

type productUpdateRequest struct {
	Name        *string  `json:"name" validate:"omitempty,max=200"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	CategoryID  *string  `json:"categoryId"`
	InStock     *bool    `json:"inStock"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
}

// GetProducts lists products, optionally filtered by category, vendor,
// stock and price range
func (pc *ProductController) GetProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r.URL.Query())
	if err != nil {
		pc.fail(w, err)
		return
	}
	ctx, cancel := pc.ctx(r)
	defer cancel()

	products, err := pc.Products.List(ctx, filter)
	if err != nil {
		pc.fail(w, utils.Internal(err))
		return
	}
	utils.SuccessList(w, products, len(products))
}

// GetProductByID retrieves a single product by ID
func (pc *ProductController) GetProductByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := pc.ctx(r)
	defer cancel()

	product, err := pc.load(ctx, mux.Vars(r)["id"])
	if err != nil {
		pc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "", product)
}

// CreateProduct lists a new product owned by the caller (vendors and admins)
func (pc *ProductController) CreateProduct(w http.ResponseWriter, r *http.Request) {
	me, ok := pc.caller(w, r)
	if !ok {
		return
	}
	var req productRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		pc.fail(w, err)
		return
	}
	ctx, cancel := pc.ctx(r)
	defer cancel()

	categoryID, err := pc.resolveCategory(ctx, req.CategoryID)
	if err != nil {
		pc.fail(w, err)
		return
	}
	product := &models.Product{
		Name:        strings.TrimSpace(req.Name),
		Price:       *req.Price,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  categoryID,
		VendorID:    me.ID,
		InStock:     true,
	}
	if req.InStock != nil {
		product.InStock = *req.InStock
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if err := pc.Products.Create(ctx, product); err != nil {
		pc.fail(w, utils.Internal(err))
		return
	}
	utils.Success(w, http.StatusCreated, "Product created successfully", product)
}

// UpdateProduct edits a product (owning vendor or admin)
func (pc *ProductController) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	me, ok := pc.caller(w, r)
	if !ok {
		return
	}
	var req productUpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		pc.fail(w, err)
		return
	}
	ctx, cancel := pc.ctx(r)
	defer cancel()

	product, err := pc.load(ctx, mux.Vars(r)["id"])
	if err != nil {
		pc.fail(w, err)
		return
	}
	if err := access.Check(middleware.Actor(me), product.VendorID, access.UpdateProduct); err != nil {
		pc.fail(w, err)
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		categoryID, err := pc.resolveCategory(ctx, *req.CategoryID)
		if err != nil {
			pc.fail(w, err)
			return
		}
		product.CategoryID = categoryID
	}
	if req.InStock != nil {
		product.InStock = *req.InStock
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}

	if err := pc.Products.Save(ctx, product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pc.fail(w, utils.NotFound("Product not found"))
			return
		}
		pc.fail(w, utils.Internal(err))
		return
	}
	utils.Success(w, http.StatusOK, "Product updated successfully", product)
}

// DeleteProduct removes a product (owning vendor or admin)
func (pc *ProductController) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	me, ok := pc.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := pc.ctx(r)
	defer cancel()

	product, err := pc.load(ctx, mux.Vars(r)["id"])
	if err != nil {
		pc.fail(w, err)
		return
	}
	if err := access.Check(middleware.Actor(me), product.VendorID, access.DeleteProduct); err != nil {
		pc.fail(w, err)
		return
	}
	if err := pc.Products.Delete(ctx, product.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			pc.fail(w, utils.NotFound("Product not found"))
			return
		}
		pc.fail(w, utils.Internal(err))
		return
	}
	utils.Success(w, http.StatusOK, "Product deleted successfully", nil)
}

func (pc *ProductController) load(ctx context.Context, rawID string) (*models.Product, error) {
	id, err := utils.ParseID(rawID, "product")
	if err != nil {
		return nil, err
	}
	product, err := pc.Products.FindByID(ctx, id)
	if err != nil {
		return nil, utils.Internal(err)
	}
	if product == nil {
		return nil, utils.NotFound("Product not found")
	}
	return product, nil
}

// resolveCategory checks that rawID names an existing category.
func (pc *ProductController) resolveCategory(ctx context.Context, rawID string) (primitive.ObjectID, error) {
	id, err := utils.ParseID(rawID, "category")
	if err != nil {
		return primitive.NilObjectID, err
	}
	category, err := pc.Categories.FindByID(ctx, id)
	if err != nil {
		return primitive.NilObjectID, utils.Internal(err)
	}
	if category == nil {
		return primitive.NilObjectID, utils.NotFound("Category not found")
	}
	return id, nil
}

func parseProductFilter(q url.Values) (store.ProductFilter, error) {
	var f store.ProductFilter
	if v := q.Get("category"); v != "" {
		id, err := utils.ParseID(v, "category")
		if err != nil {
			return f, err
		}
		f.CategoryID = &id
	}
	if v := q.Get("vendor"); v != "" {
		id, err := utils.ParseID(v, "vendor")
		if err != nil {
			return f, err
		}
		f.VendorID = &id
	}
	if v := q.Get("inStock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, utils.BadRequest("inStock must be true or false")
		}
		f.InStock = &b
	}
	for _, p := range []struct {
		key string
		dst **float64
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || n < 0 {
			return f, utils.BadRequest(p.key + " must be a non-negative number")
		}
		*p.dst = &n
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, utils.BadRequest("minPrice cannot exceed maxPrice")
	}
	return f, nil
}
