// routes/routes.go
package routes

import (
	"net/http"

	"storefront-api/access"
	"storefront-api/controllers"
	"storefront-api/middleware"
	"storefront-api/utils"

	"github.com/gorilla/mux"
)

// Controllers groups the handlers the router dispatches to
type Controllers struct {
	Users      *controllers.UserController
	Categories *controllers.CategoryController
	Products   *controllers.ProductController
	Cart       *controllers.CartController
	Health     *controllers.HealthController
}

type mw = func(http.Handler) http.Handler

// RegisterRoutes sets up all the routes for the application. limit guards
// the unauthenticated credential endpoints.
func RegisterRoutes(router *mux.Router, auth *middleware.Auth, limit mw, c Controllers) {
	// protected wraps h in authentication followed by the given middleware
	protected := func(h http.HandlerFunc, extra ...mw) http.Handler {
		var out http.Handler = h
		for i := len(extra) - 1; i >= 0; i-- {
			out = extra[i](out)
		}
		return auth.Authenticate(out)
	}

	router.HandleFunc("/health", c.Health.Health).Methods(http.MethodGet)

	// Users. Fixed paths go before /users/{id}.
	router.Handle("/users/register", limit(http.HandlerFunc(c.Users.Register))).Methods(http.MethodPost)
	router.Handle("/users/login", limit(http.HandlerFunc(c.Users.Login))).Methods(http.MethodPost)
	router.Handle("/users/profile/{id}", protected(c.Users.GetProfile)).Methods(http.MethodGet)
	router.Handle("/users/profile", protected(c.Users.UpdateProfile)).Methods(http.MethodPut)
	router.Handle("/users/change-password", protected(c.Users.ChangePassword)).Methods(http.MethodPut)
	router.Handle("/users", protected(c.Users.ListUsers, auth.Require(access.ListUsers))).Methods(http.MethodGet)
	router.Handle("/users/{id}", protected(c.Users.UpdateUser)).Methods(http.MethodPut)
	router.Handle("/users/{id}", protected(c.Users.DeleteUser)).Methods(http.MethodDelete)

	// Categories
	router.HandleFunc("/categories", c.Categories.GetCategories).Methods(http.MethodGet)
	router.HandleFunc("/categories/{id}", c.Categories.GetCategoryByID).Methods(http.MethodGet)
	router.Handle("/categories", protected(c.Categories.CreateCategory, auth.Require(access.CreateCategory))).Methods(http.MethodPost)
	router.Handle("/categories/{id}", protected(c.Categories.UpdateCategory, auth.Require(access.UpdateCategory))).Methods(http.MethodPut)
	router.Handle("/categories/{id}", protected(c.Categories.DeleteCategory, auth.Require(access.DeleteCategory))).Methods(http.MethodDelete)

	// Products. Ownership is checked in the handlers.
	router.HandleFunc("/products", c.Products.GetProducts).Methods(http.MethodGet)
	router.HandleFunc("/products/{id}", c.Products.GetProductByID).Methods(http.MethodGet)
	router.Handle("/products", protected(c.Products.CreateProduct, auth.Require(access.CreateProduct))).Methods(http.MethodPost)
	router.Handle("/products/{id}", protected(c.Products.UpdateProduct)).Methods(http.MethodPut)
	router.Handle("/products/{id}", protected(c.Products.DeleteProduct)).Methods(http.MethodDelete)

	// Cart
	router.Handle("/cart", protected(c.Cart.GetCart)).Methods(http.MethodGet)
	router.Handle("/cart", protected(c.Cart.AddToCart)).Methods(http.MethodPost)
	router.Handle("/cart", protected(c.Cart.UpdateCartItem)).Methods(http.MethodPut)
	router.Handle("/cart", protected(c.Cart.ClearCart)).Methods(http.MethodDelete)
	router.Handle("/cart/{productId}", protected(c.Cart.RemoveFromCart)).Methods(http.MethodDelete)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, utils.NotFound("Route "+r.URL.Path+" not found"), false)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusMethodNotAllowed, utils.Response{
			Success: false,
			Message: "Method " + r.Method + " not allowed on " + r.URL.Path,
		})
	})
}
