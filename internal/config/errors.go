package config

import "errors"

var (
	// ErrNoTargetURL is returned when no target URL is provided
	ErrNoTargetURL = errors.New("target URL is required")
	// ErrInvalidTimestamp is returned when the snapshot timestamp is not YYYYMMDDHHMMSS
	ErrInvalidTimestamp = errors.New("snapshot timestamp must be 14 digits (YYYYMMDDHHMMSS)")
	// ErrInvalidProxyURL is returned when the proxy URL is malformed
	ErrInvalidProxyURL = errors.New("proxy URL must be http(s)://[user:pass@]host:port")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidDepth is returned when the traversal depth is not greater than 0
	ErrInvalidDepth = errors.New("depth must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrUnknownTransport is returned when the transport name is not recognized
	ErrUnknownTransport = errors.New("transport must be \"http\" or \"browser\"")
)
