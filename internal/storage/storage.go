package storage

import "errors"

var (
	ErrUserExists      = errors.New("user already exists")
	ErrUserNotFound    = errors.New("user not found")
	ErrChannelNotFound = errors.New("channel not found")
	ErrVideoNotFound   = errors.New("video not found")

	// ErrSessionNotFound: the user has no persisted refresh token (logged out
	// or never logged in). ErrSessionMismatch: the compare-and-swap rotation
	// found a different persisted value than the presented one.
	ErrSessionNotFound = errors.New("no active session")
	ErrSessionMismatch = errors.New("refresh token mismatch")
)

var (
	ErrFileTooLarge = errors.New("file size exceeds limit")
	ErrFileRequired = errors.New("file is required")
)
