package store

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront-api/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process store with the same uniqueness and versioning
// rules as the mongo one. Records are copied in and out so callers never
// share state with the store.
type Memory struct {
	mu         sync.Mutex
	users      map[primitive.ObjectID]models.User
	categories map[primitive.ObjectID]models.Category
	products   map[primitive.ObjectID]models.Product
	carts      map[primitive.ObjectID]models.Cart // keyed by user
}

func NewMemory() *Memory {
	return &Memory{
		users:      map[primitive.ObjectID]models.User{},
		categories: map[primitive.ObjectID]models.Category{},
		products:   map[primitive.ObjectID]models.Product{},
		carts:      map[primitive.ObjectID]models.Cart{},
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

// Stores returns the memory-backed stores.
func (m *Memory) Stores() Stores {
	return Stores{
		Users:      memUsers{m},
		Categories: memCategories{m},
		Products:   memProducts{m},
		Carts:      memCarts{m},
		Health:     m,
	}
}

func newer(aT, bT time.Time, aID, bID primitive.ObjectID) bool {
	if !aT.Equal(bT) {
		return aT.After(bT)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}

type memUsers struct{ m *Memory }

func (s memUsers) find(match func(models.User) bool) *models.User {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, u := range s.m.users {
		if match(u) {
			return &u
		}
	}
	return nil
}

func (s memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id }), nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	return s.find(func(u models.User) bool { return u.Email == email }), nil
}

func (s memUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return s.find(func(u models.User) bool { return u.Username == username }), nil
}

func (s memUsers) List(context.Context) ([]models.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.User, 0, len(s.m.users))
	for _, u := range s.m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s memUsers) clashes(u *models.User) bool {
	for _, other := range s.m.users {
		if other.ID != u.ID && (other.Email == u.Email || other.Username == u.Username) {
			return true
		}
	}
	return false
}

func (s memUsers) Create(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	u.ID = primitive.NewObjectID()
	if s.clashes(u) {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.m.users[u.ID] = *u
	return nil
}

func (s memUsers) Save(_ context.Context, u *models.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[u.ID]; !ok {
		return ErrNotFound
	}
	if s.clashes(u) {
		return ErrDuplicate
	}
	u.UpdatedAt = time.Now().UTC()
	s.m.users[u.ID] = *u
	return nil
}

func (s memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.users, id)
	return nil
}

type memCategories struct{ m *Memory }

func (s memCategories) FindByID(_ context.Context, id primitive.ObjectID) (*models.Category, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c, ok := s.m.categories[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (s memCategories) FindByNameCI(_ context.Context, name string) (*models.Category, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, c := range s.m.categories {
		if strings.EqualFold(c.Name, name) {
			return &c, nil
		}
	}
	return nil, nil
}

func (s memCategories) List(context.Context) ([]models.Category, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]models.Category, 0, len(s.m.categories))
	for _, c := range s.m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (s memCategories) clashes(c *models.Category) bool {
	for _, other := range s.m.categories {
		if other.ID != c.ID && strings.EqualFold(other.Name, c.Name) {
			return true
		}
	}
	return false
}

func (s memCategories) Create(_ context.Context, c *models.Category) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	c.ID = primitive.NewObjectID()
	if s.clashes(c) {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	s.m.categories[c.ID] = *c
	return nil
}

func (s memCategories) Save(_ context.Context, c *models.Category) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.categories[c.ID]; !ok {
		return ErrNotFound
	}
	if s.clashes(c) {
		return ErrDuplicate
	}
	c.UpdatedAt = time.Now().UTC()
	s.m.categories[c.ID] = *c
	return nil
}

func (s memCategories) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.categories[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.categories, id)
	return nil
}

type memProducts struct{ m *Memory }

func (s memProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if p, ok := s.m.products[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s memProducts) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.Product{}
	seen := map[primitive.ObjectID]bool{}
	for _, id := range ids {
		if p, ok := s.m.products[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (s memProducts) List(_ context.Context, f ProductFilter) ([]models.Product, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := []models.Product{}
	for _, p := range s.m.products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID) })
	return out, nil
}

func (s memProducts) Create(_ context.Context, p *models.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	s.m.products[p.ID] = *p
	return nil
}

func (s memProducts) Save(_ context.Context, p *models.Product) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.products[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	s.m.products[p.ID] = *p
	return nil
}

func (s memProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.products[id]; !ok {
		return ErrNotFound
	}
	delete(s.m.products, id)
	return nil
}

type memCarts struct{ m *Memory }

func copyCart(c models.Cart) *models.Cart {
	c.Items = append([]models.CartItem{}, c.Items...)
	return &c
}

func (s memCarts) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if c, ok := s.m.carts[userID]; ok {
		return copyCart(c), nil
	}
	return nil, nil
}

func (s memCarts) Create(_ context.Context, c *models.Cart) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.carts[c.UserID]; ok {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	s.m.carts[c.UserID] = *copyCart(*c)
	return nil
}

func (s memCarts) Replace(_ context.Context, c *models.Cart) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	stored, ok := s.m.carts[c.UserID]
	if !ok || stored.ID != c.ID || stored.Version != c.Version {
		return ErrVersionConflict
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	c.Version++
	c.UpdatedAt = time.Now().UTC()
	s.m.carts[c.UserID] = *copyCart(*c)
	return nil
}
