// Package auth encodes and verifies the signed access tokens handed out at
// login, and extracts them from incoming Authorization headers.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claim names used by the service.
const (
	ClaimUsername = "username"
	ClaimExpires  = "exp"
	ClaimTokenID  = "jti"
)

var (
	// ErrDecodeFailure covers every reason a token could not be decoded:
	// bad signature, foreign algorithm, malformed encoding or missing exp.
	ErrDecodeFailure        = errors.New("token decode failure")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// CodecOption configures a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces time.Now as the codec's time source.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// TokenCodec signs claim sets into compact JWTs and verifies them back.
// A codec is immutable after construction and safe for concurrent use.
type TokenCodec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenCodec returns a codec bound to secret and one HMAC algorithm
// (HS256, HS384 or HS512). Tokens signed with any other algorithm are
// rejected on decode.
func NewTokenCodec(secret []byte, algorithm string, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: token signing secret", common.ErrConfigurationMissing)
	}

	method, ok := signingMethods[strings.ToUpper(strings.TrimSpace(algorithm))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// exp is checked by IsExpired against c.now, not by the parser
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	return c, nil
}

// Algorithm reports the signing algorithm identifier.
func (c *TokenCodec) Algorithm() string {
	return c.method.Alg()
}

// Issue signs a copy of claims with exp set to now + ttlMinutes.
// The caller's map is left untouched.
func (c *TokenCodec) Issue(claims map[string]any, ttlMinutes int) (string, error) {
	mc := make(jwt.MapClaims, len(claims)+1)
	for k, v := range claims {
		mc[k] = v
	}
	mc[ClaimExpires] = jwt.NewNumericDate(c.now().Add(time.Duration(ttlMinutes) * time.Minute))

	token, err := jwt.NewWithClaims(c.method, mc).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Decode verifies the token and returns its claims. An elapsed exp is not
// an error here; use IsExpired for that.
func (c *TokenCodec) Decode(token string) (map[string]any, error) {
	claims := jwt.MapClaims{}

	_, err := c.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if exp == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrDecodeFailure)
	}

	return claims, nil
}

// IsExpired reports whether token can no longer be used. Tokens that fail
// to decode count as expired.
func (c *TokenCodec) IsExpired(token string) bool {
	claims, err := c.Decode(token)
	if err != nil {
		return true
	}

	exp, err := jwt.MapClaims(claims).GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !exp.Time.After(c.now())
}
