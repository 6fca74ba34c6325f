package redisconn

import "errors"

var (
	// ErrParseURL is returned when the connection URL is malformed.
	ErrParseURL = errors.New("failed to parse redis connection url")

	// ErrNotReady is returned when all connection attempts fail.
	ErrNotReady = errors.New("redis connection is not ready")
)
