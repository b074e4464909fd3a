package reward

import "errors"

var (
	ErrCodeTaken         = errors.New("reward code already exists")
	ErrCodeSpaceExceeded = errors.New("could not generate a unique reward code")
	ErrMembershipUsed    = errors.New("membership already used")
)
