package stamp

import "errors"

var (
	ErrDuplicateVisit   = errors.New("visit already registered today")
	ErrRewardCodeTaken  = errors.New("reward code already issued")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrNoStampProgram   = errors.New("tenant has no active stamp-card program")
	ErrUnexpectedStatus = errors.New("unexpected stamp-card status")
	ErrStampNotPending  = errors.New("visit row already applied or orphaned")
)
