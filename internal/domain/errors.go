package domain

import "errors"

var (
	ErrValidation   = errors.New("invalid payload")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)
