package middleware

import (
	"context"
	"net/http"
	"strings"

	"storefront-api/access"
	"storefront-api/models"
	"storefront-api/store"
	"storefront-api/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// Auth verifies bearer tokens and loads the live user record
type Auth struct {
	Tokens *utils.TokenManager
	Users  store.UserStore
	Dev    bool
}

// Authenticate rejects requests without a valid token for an existing user
// and attaches that user to the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			utils.WriteError(w, utils.Unauthorized("Authorization header missing"), a.Dev)
			return
		}
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.WriteError(w, utils.Unauthorized("Invalid Authorization header format"), a.Dev)
			return
		}

		claims, err := a.Tokens.ParseJWT(parts[1])
		if err != nil {
			utils.WriteError(w, utils.Unauthorized("Invalid or expired token"), a.Dev)
			return
		}
		id, err := primitive.ObjectIDFromHex(claims.ID)
		if err != nil {
			utils.WriteError(w, utils.Unauthorized("Invalid or expired token"), a.Dev)
			return
		}
		user, err := a.Users.FindByID(r.Context(), id)
		if err != nil {
			utils.WriteError(w, utils.Internal(err), a.Dev)
			return
		}
		if user == nil {
			utils.WriteError(w, utils.Unauthorized("User no longer exists"), a.Dev)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require only lets the request through when the caller may perform op.
// It is meant for operations that have no resource owner.
func (a *Auth) Require(op access.Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				utils.WriteError(w, utils.Unauthorized("Not authenticated"), a.Dev)
				return
			}
			if err := access.Check(Actor(user), primitive.NilObjectID, op); err != nil {
				utils.WriteError(w, err, a.Dev)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CurrentUser returns the user attached by Authenticate.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}

// WithUser attaches user to ctx the way Authenticate does.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// Actor converts a user into the access-control actor.
func Actor(user *models.User) access.Actor {
	return access.Actor{ID: user.ID, Role: user.Role}
}
