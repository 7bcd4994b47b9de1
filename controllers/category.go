package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"storefront-api/models"
	"storefront-api/store"
	"storefront-api/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CategoryController handles category requests. Mutations are admin only;
// the router enforces that.
type CategoryController struct {
	Base
	Categories store.CategoryStore
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type categoryUpdateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
}

// GetCategories lists all categories
func (cc *CategoryController) GetCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := cc.ctx(r)
	defer cancel()

	categories, err := cc.Categories.List(ctx)
	if err != nil {
		cc.fail(w, utils.Internal(err))
		return
	}
	utils.SuccessList(w, categories, len(categories))
}

// GetCategoryByID retrieves a single category
func (cc *CategoryController) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := cc.ctx(r)
	defer cancel()

	category, err := cc.load(ctx, mux.Vars(r)["id"])
	if err != nil {
		cc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "", category)
}

// CreateCategory adds a category with a name no other category has, ignoring case
func (cc *CategoryController) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		cc.fail(w, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		cc.fail(w, utils.BadRequest("name is required"))
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	if err := cc.ensureNameFree(ctx, name, primitive.NilObjectID); err != nil {
		cc.fail(w, err)
		return
	}
	category := &models.Category{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := cc.Categories.Create(ctx, category); err != nil {
		cc.fail(w, categoryWriteErr(err))
		return
	}
	utils.Success(w, http.StatusCreated, "Category created successfully", category)
}

// UpdateCategory renames or re-describes a category
func (cc *CategoryController) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryUpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		cc.fail(w, err)
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	category, err := cc.load(ctx, mux.Vars(r)["id"])
	if err != nil {
		cc.fail(w, err)
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			cc.fail(w, utils.BadRequest("name cannot be empty"))
			return
		}
		if err := cc.ensureNameFree(ctx, name, category.ID); err != nil {
			cc.fail(w, err)
			return
		}
		category.Name = name
	}
	if req.Description != nil {
		category.Description = strings.TrimSpace(*req.Description)
	}
	if err := cc.Categories.Save(ctx, category); err != nil {
		cc.fail(w, categoryWriteErr(err))
		return
	}
	utils.Success(w, http.StatusOK, "Category updated successfully", category)
}

// DeleteCategory removes a category
func (cc *CategoryController) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(mux.Vars(r)["id"], "category")
	if err != nil {
		cc.fail(w, err)
		return
	}
	ctx, cancel := cc.ctx(r)
	defer cancel()

	if err := cc.Categories.Delete(ctx, id); err != nil {
		cc.fail(w, categoryWriteErr(err))
		return
	}
	utils.Success(w, http.StatusOK, "Category deleted successfully", nil)
}

func (cc *CategoryController) load(ctx context.Context, rawID string) (*models.Category, error) {
	id, err := utils.ParseID(rawID, "category")
	if err != nil {
		return nil, err
	}
	category, err := cc.Categories.FindByID(ctx, id)
	if err != nil {
		return nil, utils.Internal(err)
	}
	if category == nil {
		return nil, utils.NotFound("Category not found")
	}
	return category, nil
}

func (cc *CategoryController) ensureNameFree(ctx context.Context, name string, self primitive.ObjectID) error {
	existing, err := cc.Categories.FindByNameCI(ctx, name)
	if err != nil {
		return utils.Internal(err)
	}
	if existing != nil && existing.ID != self {
		return utils.Conflict("Category with this name already exists")
	}
	return nil
}

func categoryWriteErr(err error) error {
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return utils.Conflict("Category with this name already exists")
	case errors.Is(err, store.ErrNotFound):
		return utils.NotFound("Category not found")
	}
	return utils.Internal(err)
}
