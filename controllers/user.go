package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"storefront-api/access"
	"storefront-api/events"
	"storefront-api/middleware"
	"storefront-api/models"
	"storefront-api/store"
	"storefront-api/utils"

	"github.com/gorilla/mux"
)

// UserController handles registration, login and account management
type UserController struct {
	Base
	Users      store.UserStore
	Tokens     *utils.TokenManager
	Events     events.Publisher
	BcryptCost int
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"omitempty,oneof=customer vendor"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type updateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Role     *string `json:"role"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register handles user registration
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		uc.fail(w, err)
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Role:     models.RoleCustomer,
	}
	if req.Role != "" {
		user.Role = models.Role(req.Role)
	}
	if err := uc.ensureUnique(ctx, user); err != nil {
		uc.fail(w, err)
		return
	}

	hashed, err := utils.HashPassword(req.Password, uc.BcryptCost)
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	user.Password = hashed

	if err := uc.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			uc.fail(w, utils.Conflict("User already exists"))
			return
		}
		uc.fail(w, utils.Internal(err))
		return
	}

	token, err := uc.Tokens.GenerateJWT(user.ID.Hex())
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	uc.publish(ctx, events.UserRegistered, user)

	utils.Success(w, http.StatusCreated, "User registered successfully", authResponse{User: user, Token: token})
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		uc.fail(w, err)
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	user, err := uc.Users.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	if user == nil || !utils.CheckPassword(user.Password, req.Password) {
		uc.fail(w, utils.Unauthorized("Invalid email or password"))
		return
	}

	token, err := uc.Tokens.GenerateJWT(user.ID.Hex())
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	utils.Success(w, http.StatusOK, "Login successful", authResponse{User: user, Token: token})
}

// GetProfile returns any user's public profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(mux.Vars(r)["id"], "user")
	if err != nil {
		uc.fail(w, err)
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	user, err := uc.Users.FindByID(ctx, id)
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	if user == nil {
		uc.fail(w, utils.NotFound("User not found"))
		return
	}
	utils.Success(w, http.StatusOK, "", user)
}

// UpdateProfile changes the caller's username or email
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	me, ok := uc.caller(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		uc.fail(w, err)
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	user := *me
	applyIdentity(&user, req.Username, req.Email)
	if err := uc.save(ctx, &user); err != nil {
		uc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "Profile updated successfully", &user)
}

// ChangePassword replaces the caller's password after checking the current one
func (uc *UserController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	me, ok := uc.caller(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		uc.fail(w, err)
		return
	}
	if !utils.CheckPassword(me.Password, req.CurrentPassword) {
		uc.fail(w, utils.Unauthorized("Current password is incorrect"))
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	hashed, err := utils.HashPassword(req.NewPassword, uc.BcryptCost)
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	user := *me
	user.Password = hashed
	if err := uc.save(ctx, &user); err != nil {
		uc.fail(w, err)
		return
	}
	uc.publish(ctx, events.UserPasswordChanged, &user)
	utils.Success(w, http.StatusOK, "Password changed successfully", nil)
}

// ListUsers returns every user (admin only)
func (uc *UserController) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := uc.ctx(r)
	defer cancel()

	users, err := uc.Users.List(ctx)
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	utils.SuccessList(w, users, len(users))
}

// UpdateUser edits a user. Callers may edit themselves; admins may edit
// anyone and are the only ones whose role changes take effect.
func (uc *UserController) UpdateUser(w http.ResponseWriter, r *http.Request) {
	me, ok := uc.caller(w, r)
	if !ok {
		return
	}
	id, err := utils.ParseID(mux.Vars(r)["id"], "user")
	if err != nil {
		uc.fail(w, err)
		return
	}
	var req updateUserRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		uc.fail(w, err)
		return
	}
	actor := middleware.Actor(me)
	if err := access.Check(actor, id, access.UpdateUser); err != nil {
		uc.fail(w, err)
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	user, err := uc.Users.FindByID(ctx, id)
	if err != nil {
		uc.fail(w, utils.Internal(err))
		return
	}
	if user == nil {
		uc.fail(w, utils.NotFound("User not found"))
		return
	}

	applyIdentity(user, req.Username, req.Email)
	if req.Role != nil && access.Decide(actor, id, access.AssignRole).Allow {
		role := models.Role(*req.Role)
		if !role.Valid() {
			uc.fail(w, utils.BadRequest("role must be one of: customer, vendor, admin"))
			return
		}
		user.Role = role
	}
	if err := uc.save(ctx, user); err != nil {
		uc.fail(w, err)
		return
	}
	utils.Success(w, http.StatusOK, "User updated successfully", user)
}

// DeleteUser removes an account. Users may delete themselves; admins anyone.
func (uc *UserController) DeleteUser(w http.ResponseWriter, r *http.Request) {
	me, ok := uc.caller(w, r)
	if !ok {
		return
	}
	id, err := utils.ParseID(mux.Vars(r)["id"], "user")
	if err != nil {
		uc.fail(w, err)
		return
	}
	if err := access.Check(middleware.Actor(me), id, access.DeleteUser); err != nil {
		uc.fail(w, err)
		return
	}
	ctx, cancel := uc.ctx(r)
	defer cancel()

	if err := uc.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			uc.fail(w, utils.NotFound("User not found"))
			return
		}
		uc.fail(w, utils.Internal(err))
		return
	}
	utils.Success(w, http.StatusOK, "User deleted successfully", nil)
}

func applyIdentity(user *models.User, username, email *string) {
	if username != nil && strings.TrimSpace(*username) != "" {
		user.Username = strings.TrimSpace(*username)
	}
	if email != nil && strings.TrimSpace(*email) != "" {
		user.Email = strings.ToLower(strings.TrimSpace(*email))
	}
}

// ensureUnique reports a Conflict when another user already holds user's
// email or username.
func (uc *UserController) ensureUnique(ctx context.Context, user *models.User) error {
	other, err := uc.Users.FindByEmail(ctx, user.Email)
	if err != nil {
		return utils.Internal(err)
	}
	if other != nil && other.ID != user.ID {
		return utils.Conflict("User with this email already exists")
	}
	other, err = uc.Users.FindByUsername(ctx, user.Username)
	if err != nil {
		return utils.Internal(err)
	}
	if other != nil && other.ID != user.ID {
		return utils.Conflict("Username is already taken")
	}
	return nil
}

func (uc *UserController) save(ctx context.Context, user *models.User) error {
	if err := uc.ensureUnique(ctx, user); err != nil {
		return err
	}
	switch err := uc.Users.Save(ctx, user); {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrDuplicate):
		return utils.Conflict("User with this email or username already exists")
	case errors.Is(err, store.ErrNotFound):
		return utils.NotFound("User not found")
	default:
		return utils.Internal(err)
	}
}

func (uc *UserController) publish(ctx context.Context, eventType string, user *models.User) {
	if uc.Events == nil {
		return
	}
	ev := events.NewUserEvent(eventType, user.ID.Hex(), user.Email, user.Username)
	if err := uc.Events.Publish(ctx, ev); err != nil {
		log.Printf("users: publish %s for %s failed: %v", eventType, user.ID.Hex(), err)
	}
}
