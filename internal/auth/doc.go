// Package auth provides authentication for fanpulse callers.
//
// # Tokens
//
// Callers authenticate with HS256 JWTs signed with the configured
// jwt_secret. The "sub" claim names the caller and the "caps" claim lists
// the capabilities it holds:
//
//	{"sub": "dashboard", "caps": ["fans", "merch"], "exp": 1767225600}
//
// Capabilities gate tool packs: a caller sees and can call only the tools
// whose required capabilities it holds. Tokens are issued with
// JWTVerifier.Generate, which the `fanpulse token` command wraps.
//
// # HTTP Middleware
//
//   - HTTPAuthMiddleware: rejects requests without a valid bearer token
//   - OptionalAuthMiddleware: attaches the identity when present
//   - RequireCapability: rejects identities missing a capability
//
// The verified Identity travels in the request context:
//
//	id := auth.FromContext(r.Context())
//
// # Errors
//
// ErrInvalidToken, ErrExpiredToken and ErrMissingClaim are returned by
// Verify and matched with errors.Is.
package auth
