// Package jwt implements the stateless access-token issuer consumed by the
// refresh coordinator. Tokens are short-lived signed JWTs (ed25519 by
// default, hs256 optional) carrying the user id and a uuid jti; minting has
// no I/O dependency on the refresh subsystem.
package jwt
