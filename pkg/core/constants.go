package core

import "errors"

// Errors
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidSide     = errors.New("invalid side")
	ErrOrderExists     = errors.New("order exists")
)
