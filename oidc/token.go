package oidc

import (
	"time"
)

const tokenExpirySkew = 10 * time.Second

// IDToken is an oidc id_token in its compact serialized form.
//
// Its String() is redacted so an IDToken never leaks into logs. It marshals
// to its real value, since tokens must round-trip through the session store.
type IDToken string

// RedactedIDToken is the redacted string for an oidc id_token
const RedactedIDToken = "[REDACTED: id_token]"

// String will redact the token
func (t IDToken) String() string {
	return RedactedIDToken
}

// Token is the result of a successful authorization code exchange: an oauth2
// access_token (with its expiry), an oidc id_token and, provider permitting,
// a refresh_token.
//
// Its String() is redacted. JSON marshaling is not, since a Token must
// round-trip through the session store.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      IDToken   `json:"id_token"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// RedactedToken is the redacted string for a Token
const RedactedToken = "[REDACTED: token]"

// String will redact the token
func (t *Token) String() string {
	return RedactedToken
}

// Expired returns true if the access token is expired, allowing a small
// skew.
func (t *Token) Expired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return t.Expiry.Round(0).Before(time.Now().Add(tokenExpirySkew))
}

// Valid will ensure that the access token is not empty or expired.
func (t *Token) Valid() bool {
	if t == nil {
		return false
	}
	if t.AccessToken == "" {
		return false
	}
	return !t.Expired()
}
