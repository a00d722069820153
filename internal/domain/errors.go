package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrSigningFailed = errors.New("signing failed")
	ErrStreamClosed  = errors.New("fill stream closed")
	ErrNoSnapshot    = errors.New("no snapshot")
)
