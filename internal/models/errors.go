package models

import "errors"

// Sentinel errors for the business-rule taxonomy. Handlers map these to
// HTTP status codes at the API boundary.
var (
	ErrNotFound           = errors.New("not found")
	ErrOutOfStock         = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrValidation         = errors.New("validation failed")
	ErrUnavailable        = errors.New("datastore unavailable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("user already exists")
	ErrCheckoutBusy       = errors.New("checkout already in progress for this session")
)
