// Package auth verifies caller identity for pairchat.
//
// Identity issuance is external. Clients present an HS256 JWT whose "sub"
// claim is their user id, signed with the configured jwt_secret. The token is
// read from the Authorization header ("Bearer <token>") or, for websocket
// handshakes from browsers, the access_token query parameter.
//
// Middleware places an *Identity on the request context; handlers read it
// with FromContext. The messaging core trusts that identity for the life of
// the connection.
package auth
