package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// RequestTimeout bounds every handler-created request context
	RequestTimeout = 30 * time.Second
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Tenant constants
const (
	// DefaultDomain is the white-label domain used when the request host has no config
	DefaultDomain = "viewiq"
)

// Pagination constants
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// DateLayout is the only accepted format for date-only request fields
const DateLayout = "2006-01-02"
