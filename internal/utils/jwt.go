package utils // package utils provides helper functions for token creation and hashing

import (
    "errors" // sentinel errors returned by Decode
    "time"   // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Decode failure kinds. ErrTokenExpired is returned only when expiry
// enforcement is requested and the signature checked out; every other
// problem (garbage input, wrong signature, missing claims) collapses
// into ErrTokenInvalid so callers cannot probe for details.
var (
    ErrTokenExpired = errors.New("token expired")
    ErrTokenInvalid = errors.New("token invalid")
)

// TokenCodec signs and verifies the session JWTs. Access and refresh
// tokens share one shape: HS256, claims sub (user ID), iat and exp.
// The two kinds differ only in the TTL the caller passes to Issue;
// the refresh value stored in the database is itself such a token.
type TokenCodec struct {
    secret []byte // shared HMAC secret from configuration
}

// NewTokenCodec builds a codec around the shared signing secret.
func NewTokenCodec(secret string) *TokenCodec {
    return &TokenCodec{secret: []byte(secret)}
}

// Issue builds and signs an HS256 JWT for a user. It embeds the user
// ID as the subject and an absolute expiry of now + ttl. The signed
// string form is returned.
func (tc *TokenCodec) Issue(userID string, ttl time.Duration) (string, error) {
    now := time.Now().UTC()
    // Construct the claims. MapClaims keeps the wire shape identical
    // for access and refresh tokens: subject, expiry, issued-at.
    claims := jwt.MapClaims{
        "sub": userID,
        "exp": now.Add(ttl).Unix(),
        "iat": now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return t.SignedString(tc.secret)
}

// Decode verifies the token signature and returns the embedded user
// ID. With enforceExpiry=false an expired but correctly signed token
// still yields its subject; the session resolver uses that to recover
// the user for transparent renewal. Tampering fails regardless of the
// flag.
func (tc *TokenCodec) Decode(token string, enforceExpiry bool) (string, error) {
    // Claims validation is disabled on the parser so expiry can be
    // checked by hand below; signature verification always runs.
    parser := jwt.NewParser(
        jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
        jwt.WithoutClaimsValidation(),
    )
    parsed, err := parser.Parse(token, func(*jwt.Token) (interface{}, error) {
        return tc.secret, nil
    })
    if err != nil || !parsed.Valid {
        return "", ErrTokenInvalid
    }
    claims, ok := parsed.Claims.(jwt.MapClaims)
    if !ok {
        return "", ErrTokenInvalid
    }
    sub, err := claims.GetSubject()
    if err != nil || sub == "" {
        return "", ErrTokenInvalid
    }
    exp, err := claims.GetExpirationTime()
    if err != nil || exp == nil {
        return "", ErrTokenInvalid
    }
    if enforceExpiry && time.Now().UTC().After(exp.Time) {
        return "", ErrTokenExpired
    }
    return sub, nil
}
