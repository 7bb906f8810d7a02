package auth

import "errors"

// ErrStateNotFound indicates the state is unknown, expired or already consumed.
var ErrStateNotFound = errors.New("oauth state not found")

// ErrStateMismatch indicates the callback provider differs from the one that issued the state.
var ErrStateMismatch = errors.New("oauth state provider mismatch")
