package model

import (
	"time"

	"rust-vip-platform/internal/domain"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleVIP     Role = "vip"
	RoleVIPPlus Role = "vip-plus"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleVIP, RoleVIPPlus, RoleAdmin:
		return true
	}
	return false
}

// User is the community member as seen by the ledger. DiscordID and SteamID
// are nil until the member links the respective account.
type User struct {
	ID        string
	Email     string
	DiscordID *string
	SteamID   *string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUser(id, email string) (*User, error) {
	if id == "" || email == "" {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &User{
		ID:        id,
		Email:     email,
		Role:      RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (u *User) IsZero() bool  { return u == nil || u.ID == "" }
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// RoleAfterActivation returns the role the user should hold once a plan
// granting planRole is active. Admins keep their role.
func (u *User) RoleAfterActivation(planRole Role) Role {
	if u.IsAdmin() {
		return RoleAdmin
	}
	if u.Role == RoleVIPPlus && planRole == RoleVIP {
		return RoleVIPPlus
	}
	return planRole
}

// RoleAfterExpiry drops VIP roles back to user. Admins keep their role.
func (u *User) RoleAfterExpiry() Role {
	if u.IsAdmin() {
		return RoleAdmin
	}
	return RoleUser
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (u *User) DiscordIDOrEmpty() string { return deref(u.DiscordID) }
func (u *User) SteamIDOrEmpty() string   { return deref(u.SteamID) }
