package biz

import "errors"

var (
	ErrInvalidJWT         = errors.New("invalid jwt token")
	ErrInvalidAPIKey      = errors.New("invalid api key")
	ErrInvalidPassword    = errors.New("invalid password")
	ErrInvalidDecision    = errors.New("invalid decision")
	ErrInvalidGrant       = errors.New("grant requires subject, relation and object")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyDecided     = errors.New("approval already decided")
	ErrAlreadyInitialized = errors.New("system already initialized")
	ErrScopeMissing       = errors.New("scope filter missing from request context")
	ErrReadOnlyBackend    = errors.New("permission backend is read-only")
	ErrInternal           = errors.New("server internal error, please try again later")
)
