package oidc

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// Attempt represents one OIDC login attempt for a user. It contains the
// transient secrets needed to uniquely and securely represent that one-time
// flow across the redirect to the provider and the callback from it: the
// State (an opaque CSRF token echoed back by the provider), the Nonce
// (embedded in the signed id_token to prevent replay) and the PKCE code
// verifier binding the authorization code to this client.
//
// An Attempt is created by NewAttempt at the start of a login, serialized
// into the user's session, and consumed exactly once by the callback. A
// second login overwrites any prior unconsumed Attempt, invalidating it.
type Attempt struct {
	// State is the opaque CSRF token carried in the authorization request's
	// "state" parameter.
	State string `json:"csrf_token"`

	// Nonce is the opaque value embedded in the authorization request and
	// echoed inside the signed id_token.
	Nonce string `json:"nonce"`

	// PKCEVerifier is the code verifier whose S256 challenge was sent with
	// the authorization request.
	PKCEVerifier CodeVerifier `json:"pkce_code_verifier"`
}

// NewAttempt creates a new Attempt. Every call yields fresh, unpredictable
// secrets from cryptographically secure sources.
func NewAttempt() (Attempt, error) {
	const op = "oidc.NewAttempt"
	state, err := NewID("st")
	if err != nil {
		return Attempt{}, fmt.Errorf("%s: unable to generate an attempt's state: %w", op, err)
	}
	nonce, err := NewID("n")
	if err != nil {
		return Attempt{}, fmt.Errorf("%s: unable to generate an attempt's nonce: %w", op, err)
	}
	verifier, err := NewCodeVerifier()
	if err != nil {
		return Attempt{}, fmt.Errorf("%s: unable to generate an attempt's code verifier: %w", op, err)
	}
	return Attempt{
		State:        state,
		Nonce:        nonce,
		PKCEVerifier: verifier,
	}, nil
}

// Validate verifies the attempt holds a complete secret bundle.
func (a Attempt) Validate() error {
	const op = "oidc.(Attempt).Validate"
	if a.State == "" {
		return fmt.Errorf("%s: attempt state is empty: %w", op, ErrInvalidParameter)
	}
	if a.Nonce == "" {
		return fmt.Errorf("%s: attempt nonce is empty: %w", op, ErrInvalidParameter)
	}
	if a.State == a.Nonce {
		return fmt.Errorf("%s: attempt state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	}
	if a.PKCEVerifier.Verifier() == "" {
		return fmt.Errorf("%s: attempt code verifier is empty: %w", op, ErrInvalidParameter)
	}
	return nil
}

// NewID generates an ID with an optional prefix. The ID generated is
// suitable for an Attempt's State or Nonce, or for a session key.
func NewID(optionalPrefix string) (string, error) {
	const op = "oidc.NewID"
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIDGeneratorFailed)
	}
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
