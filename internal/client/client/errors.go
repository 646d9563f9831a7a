package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("remote record not found")
	ErrConflict     = errors.New("remote record conflict")
	ErrBadRequest   = errors.New("bad request")
	ErrDecode       = errors.New("malformed server response")
	ErrNoSession    = errors.New("no stored session")
)
