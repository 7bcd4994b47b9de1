package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-api/cart"
	"storefront-api/config"
	"storefront-api/controllers"
	"storefront-api/events"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/store"
	"storefront-api/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type capturePublisher struct{ events []events.UserEvent }

func (p *capturePublisher) Publish(_ context.Context, ev events.UserEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type app struct {
	t       *testing.T
	handler http.Handler
	stores  store.Stores
	tokens  *utils.TokenManager
	events  *capturePublisher
}

func newApp(t *testing.T) *app {
	t.Helper()
	stores := store.NewMemory().Stores()
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	pub := &capturePublisher{}
	base := controllers.Base{Timeout: time.Second}

	router := mux.NewRouter()
	RegisterRoutes(router,
		&middleware.Auth{Tokens: tokens, Users: stores.Users},
		middleware.RateLimit(config.RateLimitConfig{}, nil),
		Controllers{
			Users: &controllers.UserController{
				Base: base, Users: stores.Users, Tokens: tokens, Events: pub, BcryptCost: bcrypt.MinCost,
			},
			Categories: &controllers.CategoryController{Base: base, Categories: stores.Categories},
			Products:   &controllers.ProductController{Base: base, Products: stores.Products, Categories: stores.Categories},
			Cart:       &controllers.CartController{Base: base, Cart: cart.NewService(stores.Carts, stores.Products)},
			Health:     &controllers.HealthController{Base: base, Store: stores.Health},
		})
	return &app{t: t, handler: router, stores: stores, tokens: tokens, events: pub}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   *int            `json:"count"`
}

func (a *app) do(method, path, token string, body interface{}) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type account struct {
	ID    string
	Token string
}

func (a *app) register(username, email, role string) account {
	a.t.Helper()
	body := map[string]string{"username": username, "email": email, "password": "secret123"}
	if role != "" {
		body["role"] = role
	}
	status, env := a.do(http.MethodPost, "/users/register", "", body)
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	data := decodeData[struct {
		User  struct{ ID string } `json:"user"`
		Token string              `json:"token"`
	}](a.t, env)
	return account{ID: data.User.ID, Token: data.Token}
}

// admin seeds an admin directly; registration never grants that role.
func (a *app) admin() account {
	a.t.Helper()
	u := &models.User{Username: "root", Email: "root@example.com", Role: models.RoleAdmin}
	require.NoError(a.t, a.stores.Users.Create(context.Background(), u))
	token, err := a.tokens.GenerateJWT(u.ID.Hex())
	require.NoError(a.t, err)
	return account{ID: u.ID.Hex(), Token: token}
}

func (a *app) category(adminToken, name string) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/categories", adminToken, map[string]string{"name": name})
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	return decodeData[struct{ ID string }](a.t, env).ID
}

func (a *app) product(token, categoryID, name string, price float64) string {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/products", token, map[string]interface{}{
		"name": name, "price": price, "categoryId": categoryID,
	})
	require.Equal(a.t, http.StatusCreated, status, env.Message)
	return decodeData[struct{ ID string }](a.t, env).ID
}

func TestRegisterAndLogin(t *testing.T) {
	a := newApp(t)
	acct := a.register("ann", "Ann@Example.com", "")
	assert.NotEmpty(t, acct.Token)
	require.Len(t, a.events.events, 1)
	assert.Equal(t, events.UserRegistered, a.events.events[0].Type)
	assert.Equal(t, "ann@example.com", a.events.events[0].Email)

	status, env := a.do(http.MethodPost, "/users/login", "", map[string]string{"email": "ann@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
	assert.NotContains(t, string(env.Data), "password")

	status, env = a.do(http.MethodPost, "/users/login", "", map[string]string{"email": "ann@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid email or password", env.Message)

	status, _ = a.do(http.MethodPost, "/users/login", "", map[string]string{"email": "nobody@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRegisterConflicts(t *testing.T) {
	a := newApp(t)
	a.register("ann", "ann@example.com", "")

	status, env := a.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": "ann2", "email": "ANN@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User with this email already exists", env.Message)

	status, env = a.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": "ann", "email": "other@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username is already taken", env.Message)
}

func TestRegisterValidation(t *testing.T) {
	a := newApp(t)
	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing password", map[string]string{"username": "ann", "email": "ann@example.com"}},
		{"short password", map[string]string{"username": "ann", "email": "ann@example.com", "password": "123"}},
		{"bad email", map[string]string{"username": "ann", "email": "ann", "password": "secret123"}},
		{"admin role", map[string]string{"username": "ann", "email": "ann@example.com", "password": "secret123", "role": "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := a.do(http.MethodPost, "/users/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.False(t, env.Success)
		})
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	a := newApp(t)
	status, env := a.do(http.MethodPost, "/users/register", "", map[string]string{
		"username": strings.Repeat("a", utils.MaxBodyBytes),
		"email":    "ann@example.com",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.False(t, env.Success)
	assert.Equal(t, "Request body too large", env.Message)
}

func TestChangePassword(t *testing.T) {
	a := newApp(t)
	acct := a.register("ann", "ann@example.com", "")

	status, env := a.do(http.MethodPut, "/users/change-password", acct.Token, map[string]string{
		"currentPassword": "nope", "newPassword": "another123",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Current password is incorrect", env.Message)

	status, _ = a.do(http.MethodPut, "/users/change-password", acct.Token, map[string]string{
		"currentPassword": "secret123", "newPassword": "another123",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, events.UserPasswordChanged, a.events.events[len(a.events.events)-1].Type)

	status, _ = a.do(http.MethodPost, "/users/login", "", map[string]string{"email": "ann@example.com", "password": "another123"})
	assert.Equal(t, http.StatusOK, status)
}

func TestUserManagement(t *testing.T) {
	a := newApp(t)
	ann := a.register("ann", "ann@example.com", "")
	bob := a.register("bob", "bob@example.com", "")
	root := a.admin()

	status, _ := a.do(http.MethodGet, "/users", ann.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env := a.do(http.MethodGet, "/users", root.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Count)
	assert.Equal(t, 3, *env.Count)

	status, _ = a.do(http.MethodPut, "/users/"+bob.ID, ann.Token, map[string]string{"username": "bobby"})
	assert.Equal(t, http.StatusForbidden, status)

	// A non-admin asking for a role change only gets the other fields applied.
	status, env = a.do(http.MethodPut, "/users/"+ann.ID, ann.Token, map[string]string{"username": "annie", "role": "admin"})
	assert.Equal(t, http.StatusOK, status)
	updated := decodeData[struct {
		Username string
		Role     string
	}](t, env)
	assert.Equal(t, "annie", updated.Username)
	assert.Equal(t, "customer", updated.Role)

	status, env = a.do(http.MethodPut, "/users/"+bob.ID, root.Token, map[string]string{"role": "vendor"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "vendor", decodeData[struct{ Role string }](t, env).Role)

	status, _ = a.do(http.MethodPut, "/users/"+bob.ID, root.Token, map[string]string{"role": "overlord"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodDelete, "/users/"+bob.ID, ann.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = a.do(http.MethodDelete, "/users/"+ann.ID, ann.Token, nil)
	assert.Equal(t, http.StatusOK, status)

	// The token outlives the account but no longer authenticates.
	status, env = a.do(http.MethodGet, "/cart", ann.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "User no longer exists", env.Message)

	status, _ = a.do(http.MethodDelete, "/users/"+ann.ID, root.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProfile(t *testing.T) {
	a := newApp(t)
	ann := a.register("ann", "ann@example.com", "")
	bob := a.register("bob", "bob@example.com", "")

	status, env := a.do(http.MethodGet, "/users/profile/"+bob.ID, ann.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "bob", decodeData[struct{ Username string }](t, env).Username)

	status, _ = a.do(http.MethodGet, "/users/profile/not-an-id", ann.Token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.do(http.MethodPut, "/users/profile", ann.Token, map[string]string{"email": "BOB@example.com"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User with this email already exists", env.Message)

	status, env = a.do(http.MethodPut, "/users/profile", ann.Token, map[string]string{"email": "Ann@New.example.com"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ann@new.example.com", decodeData[struct{ Email string }](t, env).Email)
}

func TestCategories(t *testing.T) {
	a := newApp(t)
	root := a.admin()
	vendor := a.register("vera", "vera@example.com", "vendor")

	status, _ := a.do(http.MethodPost, "/categories", vendor.Token, map[string]string{"name": "Cakes"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.do(http.MethodPost, "/categories", "", map[string]string{"name": "Cakes"})
	assert.Equal(t, http.StatusUnauthorized, status)

	cakes := a.category(root.Token, "Cakes")
	status, env := a.do(http.MethodPost, "/categories", root.Token, map[string]string{"name": "cakes"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Category with this name already exists", env.Message)

	pies := a.category(root.Token, "Pies")
	status, _ = a.do(http.MethodPut, "/categories/"+pies, root.Token, map[string]string{"name": "CAKES"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = a.do(http.MethodGet, "/categories", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, *env.Count)

	status, _ = a.do(http.MethodGet, "/categories/"+cakes, "", nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodDelete, "/categories/"+cakes, root.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodGet, "/categories/"+cakes, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProductOwnership(t *testing.T) {
	a := newApp(t)
	root := a.admin()
	cat := a.category(root.Token, "Cakes")
	v1 := a.register("vera", "vera@example.com", "vendor")
	v2 := a.register("vic", "vic@example.com", "vendor")
	shopper := a.register("sam", "sam@example.com", "")

	status, env := a.do(http.MethodPost, "/products", shopper.Token, map[string]interface{}{
		"name": "Pie", "price": 4.5, "categoryId": cat,
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Only vendors or admins can create products", env.Message)

	status, env = a.do(http.MethodPost, "/products", v1.Token, map[string]interface{}{
		"name": "Pie", "price": 4.5, "categoryId": "64b7f0c2a1b2c3d4e5f60718",
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Category not found", env.Message)

	pie := a.product(v1.Token, cat, "Pie", 4.5)

	status, _ = a.do(http.MethodPut, "/products/"+pie, v2.Token, map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.do(http.MethodDelete, "/products/"+pie, v2.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = a.do(http.MethodPut, "/products/"+pie, shopper.Token, map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = a.do(http.MethodPut, "/products/"+pie, v1.Token, map[string]interface{}{"price": 5.25})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5.25, decodeData[struct{ Price float64 }](t, env).Price)

	status, _ = a.do(http.MethodPut, "/products/"+pie, root.Token, map[string]interface{}{"inStock": false})
	assert.Equal(t, http.StatusOK, status)

	status, _ = a.do(http.MethodPut, "/products/64b7f0c2a1b2c3d4e5f60718", v1.Token, map[string]interface{}{"price": 1})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = a.do(http.MethodDelete, "/products/"+pie, v1.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodGet, "/products/"+pie, "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProductFilters(t *testing.T) {
	a := newApp(t)
	root := a.admin()
	cakes := a.category(root.Token, "Cakes")
	pies := a.category(root.Token, "Pies")
	vendor := a.register("vera", "vera@example.com", "vendor")

	a.product(vendor.Token, cakes, "Sponge", 3)
	a.product(vendor.Token, cakes, "Gateau", 30)
	a.product(root.Token, pies, "Apple", 8)

	count := func(query string) int {
		status, env := a.do(http.MethodGet, "/products"+query, "", nil)
		require.Equal(t, http.StatusOK, status, env.Message)
		return *env.Count
	}
	assert.Equal(t, 3, count(""))
	assert.Equal(t, 2, count("?category="+cakes))
	assert.Equal(t, 2, count("?vendor="+vendor.ID))
	assert.Equal(t, 2, count("?minPrice=5"))
	assert.Equal(t, 1, count("?minPrice=5&maxPrice=10"))
	assert.Equal(t, 3, count("?inStock=true"))

	status, _ := a.do(http.MethodGet, "/products?minPrice=10&maxPrice=5", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = a.do(http.MethodGet, "/products?category=zzz", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

type cartData struct {
	UserID   string `json:"userId"`
	Products []struct {
		ProductID string `json:"productId"`
		Product   *struct {
			Name  string  `json:"name"`
			Price float64 `json:"price"`
		} `json:"product"`
		Quantity int `json:"quantity"`
	} `json:"products"`
}

func TestCartFlow(t *testing.T) {
	a := newApp(t)
	root := a.admin()
	cat := a.category(root.Token, "Cakes")
	vendor := a.register("vera", "vera@example.com", "vendor")
	sponge := a.product(vendor.Token, cat, "Sponge", 3)
	tart := a.product(vendor.Token, cat, "Tart", 4)
	shopper := a.register("sam", "sam@example.com", "")

	status, env := a.do(http.MethodGet, "/cart", shopper.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	empty := decodeData[cartData](t, env)
	assert.Equal(t, shopper.ID, empty.UserID)
	assert.Empty(t, empty.Products)
	assert.Contains(t, string(env.Data), `"products":[]`)

	status, env = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": sponge, "quantity": 3})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Product added to cart", env.Message)
	status, env = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": sponge, "quantity": 2})
	require.Equal(t, http.StatusOK, status)
	c := decodeData[cartData](t, env)
	require.Len(t, c.Products, 1)
	assert.Equal(t, 5, c.Products[0].Quantity)
	require.NotNil(t, c.Products[0].Product)
	assert.Equal(t, "Sponge", c.Products[0].Product.Name)

	status, env = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": tart})
	require.Equal(t, http.StatusOK, status)
	c = decodeData[cartData](t, env)
	require.Len(t, c.Products, 2)
	assert.Equal(t, 1, c.Products[1].Quantity)

	status, env = a.do(http.MethodPut, "/cart", shopper.Token, map[string]interface{}{"productId": sponge, "quantity": 0})
	require.Equal(t, http.StatusOK, status)
	c = decodeData[cartData](t, env)
	require.Len(t, c.Products, 1)
	assert.Equal(t, tart, c.Products[0].ProductID)

	status, env = a.do(http.MethodPut, "/cart", shopper.Token, map[string]interface{}{"productId": sponge})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Product ID and quantity are required", env.Message)

	status, _ = a.do(http.MethodDelete, "/cart/"+tart, shopper.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodDelete, "/cart/"+tart, shopper.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = a.do(http.MethodDelete, "/cart", shopper.Token, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cart cleared", env.Message)
}

func TestCartErrors(t *testing.T) {
	a := newApp(t)
	shopper := a.register("sam", "sam@example.com", "")

	status, _ := a.do(http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Product ID is required", env.Message)

	status, _ = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": "64b7f0c2a1b2c3d4e5f60718"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Product not found", env.Message)

	status, env = a.do(http.MethodDelete, "/cart", shopper.Token, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Cart not found", env.Message)
}

func TestCartQuantityCannotOverflow(t *testing.T) {
	a := newApp(t)
	root := a.admin()
	cat := a.category(root.Token, "Cakes")
	sponge := a.product(root.Token, cat, "Sponge", 3)
	shopper := a.register("sam", "sam@example.com", "")

	status, _ := a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": sponge, "quantity": math.MaxInt64})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": sponge, "quantity": cart.MaxQuantity})
	require.Equal(t, http.StatusOK, status)
	status, _ = a.do(http.MethodPost, "/cart", shopper.Token, map[string]interface{}{"productId": sponge, "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, status)

	_, env := a.do(http.MethodGet, "/cart", shopper.Token, nil)
	c := decodeData[cartData](t, env)
	require.Len(t, c.Products, 1)
	assert.Equal(t, cart.MaxQuantity, c.Products[0].Quantity)
}

func TestUnknownRoute(t *testing.T) {
	a := newApp(t)
	status, env := a.do(http.MethodGet, "/nowhere/else", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, env.Success)
	assert.True(t, strings.Contains(env.Message, "/nowhere/else"))

	status, env = a.do(http.MethodPatch, "/products", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.False(t, env.Success)
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	status, env := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", decodeData[map[string]string](t, env)["status"])
}
