package membership

import "errors"

var (
	ErrMembershipNotFound  = errors.New("membership not found")
	ErrMembershipNotActive = errors.New("membership is not active")
	ErrPassExhausted       = errors.New("no uses left on pass")
	ErrInsufficientBalance = errors.New("insufficient membership balance")
	ErrStateConflict       = errors.New("membership state changed concurrently")
	ErrInvalidAmount       = errors.New("invalid amount")
)
