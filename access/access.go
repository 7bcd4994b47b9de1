// Package access decides whether an actor may perform an operation on a
// resource. It is the only place roles are compared.
package access

import (
	"storefront-api/models"
	"storefront-api/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operation names a guarded action.
type Operation string

const (
	CreateCategory Operation = "create-category"
	UpdateCategory Operation = "update-category"
	DeleteCategory Operation = "delete-category"
	ListUsers      Operation = "list-users"
	AssignRole     Operation = "assign-role"
	CreateProduct  Operation = "create-product"
	UpdateProduct  Operation = "update-product"
	DeleteProduct  Operation = "delete-product"
	UpdateUser     Operation = "update-user"
	DeleteUser     Operation = "delete-user"
)

// Actor is the authenticated caller.
type Actor struct {
	ID   primitive.ObjectID
	Role models.Role
}

// Decision is the outcome of Decide. Reason explains a denial.
type Decision struct {
	Allow  bool
	Reason string
}

func allow() Decision             { return Decision{Allow: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// Decide applies the role rules for op. ownerID is the resource owner: the
// product's vendor for product operations, the target user for user
// operations, and ignored elsewhere.
func Decide(actor Actor, ownerID primitive.ObjectID, op Operation) Decision {
	isAdmin := actor.Role == models.RoleAdmin
	isOwner := !actor.ID.IsZero() && actor.ID == ownerID

	switch op {
	case CreateCategory, UpdateCategory, DeleteCategory, ListUsers, AssignRole:
		if isAdmin {
			return allow()
		}
		return deny("Admin access required")

	case CreateProduct:
		if isAdmin || actor.Role == models.RoleVendor {
			return allow()
		}
		return deny("Only vendors or admins can create products")

	case UpdateProduct, DeleteProduct:
		if !isAdmin && actor.Role != models.RoleVendor {
			return deny("Only vendors or admins can modify products")
		}
		if isAdmin || isOwner {
			return allow()
		}
		return deny("You can only modify your own products")

	case UpdateUser:
		if isAdmin || isOwner {
			return allow()
		}
		return deny("You can only update your own account")

	case DeleteUser:
		if isAdmin || isOwner {
			return allow()
		}
		return deny("You can only delete your own account")
	}
	return deny("Unknown operation")
}

// Check is Decide reported as an error: nil on Allow, a Forbidden
// *utils.AppError on Deny.
func Check(actor Actor, ownerID primitive.ObjectID, op Operation) error {
	if d := Decide(actor, ownerID, op); !d.Allow {
		return utils.Forbidden(d.Reason)
	}
	return nil
}
