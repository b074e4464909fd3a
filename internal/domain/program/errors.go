package program

import "errors"

var ErrNoActiveProgram = errors.New("tenant has no active program")
