package model

import "errors"

var (
	// Input errors
	ErrValidation = errors.New("validation error")

	// Credential errors
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")

	// Token errors
	ErrMissingToken    = errors.New("missing token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrExpiredToken    = errors.New("token expired")
	ErrUnauthenticated = errors.New("authentication required")

	// Authorization errors
	ErrForbidden = errors.New("forbidden")

	// Catalog errors
	ErrProductNotFound = errors.New("product not found")

	// Persistence errors
	ErrStore = errors.New("store error")
)
