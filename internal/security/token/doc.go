// Package token signs and verifies the compact, expiring bearer tokens used for
// access and refresh credentials.
//
// Tokens are HS256 JWTs. Each Codec owns exactly one secret and one lifetime,
// so access and refresh tokens are produced by two independent codecs and a
// token minted by one never verifies under the other.
package token
