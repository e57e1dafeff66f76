package common

const (
	// AuthorizationHeaderName is the HTTP header (and lower-cased gRPC
	// metadata key) carrying the session access token.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the token inside the Authorization header.
	BearerPrefix = "Bearer "
)
