package auth

import "time"

// RegisteredStatus is the status code returned for a successful registration
const RegisteredStatus = 1

// RegisterRequest is the registration form. The email doubles as the username.
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// LoginRequest carries the credentials presented at login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterResult is returned after an account is created and assigned its default role
type RegisterResult struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Status   int    `json:"status"`
	Message  string `json:"message"`
}

// LoginResult carries the signed access token and its expiry
type LoginResult struct {
	Token      string    `json:"token"`
	Expiration time.Time `json:"expiration"`
	Username   string    `json:"username"`
	Role       string    `json:"userRole"`
}
