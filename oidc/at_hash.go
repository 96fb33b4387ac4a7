package oidc

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
)

// accessTokenHash computes the at_hash value for an access token: the
// base64url encoding of the left half of the token's digest, using the hash
// that matches the id_token's signing algorithm.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#CodeIDToken
func accessTokenHash(signingAlg Alg, accessToken string) (string, error) {
	const op = "oidc.accessTokenHash"
	var h hash.Hash
	switch signingAlg {
	case RS256, ES256, PS256:
		h = sha256.New()
	case RS384, ES384, PS384:
		h = sha512.New384()
	case RS512, ES512, PS512:
		h = sha512.New()
	default:
		return "", fmt.Errorf("%s: %q: %w", op, signingAlg, ErrUnsupportedAlg)
	}
	_, _ = h.Write([]byte(accessToken)) // hash.Hash never returns an error
	sum := h.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(sum[:len(sum)/2]), nil
}

// VerifyAccessTokenHash verifies that the access token returned alongside a
// verified id_token matches the id_token's at_hash claim, detecting token
// substitution. Claims without an at_hash are not an error: the claim is
// optional for the authorization code flow and provider-dependent.
func VerifyAccessTokenHash(c *Claims, accessToken string) error {
	const op = "oidc.VerifyAccessTokenHash"
	if c == nil {
		return fmt.Errorf("%s: claims are nil: %w", op, ErrNilParameter)
	}
	if c.AccessTokenHash == "" {
		return nil
	}
	if accessToken == "" {
		return fmt.Errorf("%s: access token is empty: %w", op, ErrInvalidParameter)
	}
	actual, err := accessTokenHash(c.SigningAlg, accessToken)
	if err != nil {
		return fmt.Errorf("%s: unable to compute access token hash: %w", op, err)
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(c.AccessTokenHash)) != 1 {
		return fmt.Errorf("%s: %w", op, ErrInvalidAccessTokenHash)
	}
	return nil
}
