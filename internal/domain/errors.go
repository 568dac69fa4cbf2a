package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrMarketNotReady = errors.New("market not yet materialized")
	ErrUnknownChannel = errors.New("unknown notification channel")
	ErrBadPayload     = errors.New("malformed notification payload")
	ErrContextDone    = errors.New("context cancelled")
)
