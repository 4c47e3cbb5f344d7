package utils

type contextKey string

// Request-scoped context keys set by handlers and middleware
const (
	RequestIDKey   contextKey = "request_id"
	UserAgentKey   contextKey = "user_agent"
	IPAddressKey   contextKey = "ip_address"
	EndpointKey    contextKey = "endpoint"
	RequestUserKey contextKey = "request_user"
	HostKey        contextKey = "host"
)
