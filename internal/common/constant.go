// Package common contains shared constants and sentinel errors used across
// streamflow components.
package common

// AuthorizationHeaderName is the gRPC metadata / HTTP header key that carries
// the bearer token on inbound and outbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the only authorization scheme accepted by the services.
const BearerScheme = "Bearer"

// TokenType is reported to clients alongside a freshly issued token.
const TokenType = "bearer"
