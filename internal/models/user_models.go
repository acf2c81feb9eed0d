package models

import "time"

// Role constants for staff, drivers and customers.
const (
	RoleCustomer   = "CUSTOMER"
	RoleDriver     = "DRIVER"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

// User is a customer, driver or staff account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor identifies who issued a command, as extracted from the JWT.
type Actor struct {
	ID   int64
	Role string
}

// LoginRequest authenticates a user and returns a JWT.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
