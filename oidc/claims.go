package oidc

import (
	"encoding/json"
	"fmt"
	"time"
)

// Claims holds the standard claims of a verified id_token. A Claims value is
// only ever produced by Provider.VerifyIDToken, after the token's signature
// and standard claims have been checked, so holding one is proof the checks
// passed.
type Claims struct {
	// Subject is the identifier of the authenticated end-user.
	Subject string `json:"sub"`

	// Issuer identifies the provider that issued the token.
	Issuer string `json:"iss"`

	// Audience is the set of audiences the token is intended for. It always
	// contains the configured client id.
	Audience []string `json:"aud"`

	// Expiry is the token's expiration time.
	Expiry time.Time `json:"exp"`

	// Nonce echoes the nonce generated when the login attempt started.
	Nonce string `json:"nonce,omitempty"`

	// AccessTokenHash is the optional at_hash claim binding the id_token to
	// the access token it was issued with. Empty when the provider didn't
	// include one.
	AccessTokenHash string `json:"at_hash,omitempty"`

	// SigningAlg is the algorithm the id_token's signature was verified
	// with. The access token hash check depends on it.
	SigningAlg Alg `json:"alg"`

	// Raw is the full claims payload, for access to provider-specific
	// claims via Decode.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Decode unmarshals the full claims payload into v, giving access to
// provider-specific claims beyond the standard ones.
func (c *Claims) Decode(v interface{}) error {
	const op = "oidc.(Claims).Decode"
	if c == nil {
		return fmt.Errorf("%s: claims are nil: %w", op, ErrNilParameter)
	}
	if v == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	if len(c.Raw) == 0 {
		return fmt.Errorf("%s: raw claims are empty: %w", op, ErrInvalidParameter)
	}
	if err := json.Unmarshal(c.Raw, v); err != nil {
		return fmt.Errorf("%s: unable to unmarshal claims: %w", op, err)
	}
	return nil
}
