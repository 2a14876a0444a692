package service

import "errors"

var (
	// ErrThreadNotFound is returned for a missing thread or one the caller does not own
	ErrThreadNotFound = errors.New("thread not found")
	// ErrUserNotFound is returned when the user no longer exists
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials is returned for a failed login
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmptyContent is returned for a blank message body
	ErrEmptyContent = errors.New("content must not be empty")
)
