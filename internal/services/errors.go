package services

import "errors"

// Service-level sentinel errors mapped to API errors at the transport layer
var (
	// ErrNoReport marks a session that has not uploaded a dataset yet
	ErrNoReport = errors.New("no report has been generated for this session")
	// ErrPayloadTooLarge marks an upload above the configured byte limit
	ErrPayloadTooLarge = errors.New("upload exceeds the configured size limit")
	// ErrInvalidUpload marks an upload request failing validation
	ErrInvalidUpload = errors.New("invalid upload request")
)
