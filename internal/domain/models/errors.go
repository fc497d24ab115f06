package models

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid username/email or password")
	ErrUnauthenticated    = errors.New("authentication required")

	ErrItemNotFound      = errors.New("item not found")
	ErrItemAlreadyOwned  = errors.New("item is already owned")
	ErrNotOwner          = errors.New("item is not owned by user")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)
