package utils

import "time"

// Application Constants
const (
	AppName    = "PulsePath"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100

	// Request lifecycle
	RequestNumberLength = 8
	PendingAutoCancel   = 30 * time.Minute
	TransitionTimeout   = 10 * time.Second

	// Rate Limiting
	DefaultRateLimit = 100

	// Notification
	NotificationTimeout = 30 * time.Second
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken     = "invalid token"
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrValidationFailed = "validation failed"
)

// Cache Keys
const (
	CacheRequestPrefix   = "sos_request:"
	CacheHospitalPrefix  = "hospital:"
	CacheRateLimitPrefix = "rate_limit:"
)

// Pub/Sub Channels
const (
	EventChannel = "sos.events"
)
