package customer

import "errors"

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrStampNotPending  = errors.New("visit row already applied or missing")
)
