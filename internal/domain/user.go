package domain

import "time"

// Role classifies an account's privilege level.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
	RoleAdmin    Role = "admin"
)

// IsStaff reports whether the role carries staff privileges over any ticket.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// Known reports whether the role is one of the recognized variants.
// Anything else is denied across all policy checks.
func (r Role) Known() bool {
	return r == RoleCustomer || r == RoleAgent || r == RoleAdmin
}

// User is the domain model for every account: customers and staff alike.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// Actor derives the policy identity from a user record.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
