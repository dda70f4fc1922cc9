package models

import "errors"

// Check with errors.Is; repository and service errors wrap these.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("concurrent update conflict, retry the request")
	ErrInvalidArgument = errors.New("invalid argument")
)
