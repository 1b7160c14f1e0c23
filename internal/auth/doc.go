// Package auth resolves authenticated user identities for courier.
//
// Credential issuance (signup, login, OTP) is owned by an external
// authentication service. This package only verifies the signed token that
// service hands out and extracts the stable user ID it carries.
//
// # Token Format
//
// Tokens are JWTs signed with HS256 using the configured jwt_secret. The
// "sub" claim holds the user ID; "exp" is enforced.
//
// # Transport
//
// The middleware accepts a token from three places, in priority order:
//
//   - Authorization: Bearer <token> header (API clients)
//   - access_token cookie (browser sessions)
//   - token query parameter (browser WebSocket handshakes, which cannot
//     set request headers)
//
// Handlers downstream of the middleware read the identity with
// UserFromContext.
package auth
