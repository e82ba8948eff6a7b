package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleUser   Role = "USER"
	RoleSeller Role = "SELLER"
	RoleAdmin  Role = "ADMIN"
)

type User struct {
	ID                  int64
	Email               string
	Name                string
	Roles               []Role
	TotalPurchaseAmount decimal.Decimal
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (u *User) HasRole(r Role) bool {
	return slices.Contains(u.Roles, r)
}

// PromoteToSeller adds the SELLER role. The user must not already hold it.
func (u *User) PromoteToSeller() error {
	if u.HasRole(RoleSeller) {
		return Conflict(CodeDuplicateSeller, "user %d is already registered as a seller", u.ID)
	}
	u.Roles = append(u.Roles, RoleSeller)
	return nil
}

// DemoteFromSeller removes the SELLER role. The user must hold it.
func (u *User) DemoteFromSeller() error {
	if !u.HasRole(RoleSeller) {
		return NotFound(CodeSellerNotFound, "user %d is not a seller", u.ID)
	}
	u.Roles = slices.DeleteFunc(u.Roles, func(r Role) bool { return r == RoleSeller })
	return nil
}

type Seller struct {
	ID           int64
	UserID       int64
	BusinessName string
	CreatedAt    time.Time
}

// Actor is the authenticated caller as supplied by the upstream auth layer.
type Actor struct {
	UserID int64
	Roles  []Role
}

func (a Actor) HasRole(r Role) bool {
	return slices.Contains(a.Roles, r)
}

// Owned is implemented by user-scoped entities.
type Owned interface {
	OwnerID() int64
}

// AuthorizeOwner is the single ownership check applied before acting on a
// user-scoped entity.
func AuthorizeOwner(actor Actor, resource Owned, action string) error {
	if resource.OwnerID() != actor.UserID {
		return Forbidden("you can only %s your own resources", action)
	}
	return nil
}
