package oidc

import (
	"errors"
)

var (
	ErrInvalidParameter           = errors.New("invalid parameter")
	ErrNilParameter               = errors.New("nil parameter")
	ErrInvalidCACert              = errors.New("invalid CA certificate")
	ErrInvalidIssuer              = errors.New("invalid issuer")
	ErrIDGeneratorFailed          = errors.New("id generation failed")
	ErrTokenExchangeFailed        = errors.New("token exchange failed")
	ErrMissingIDToken             = errors.New("id_token is missing")
	ErrInvalidIDToken             = errors.New("id_token verification failed")
	ErrInvalidNonce               = errors.New("invalid nonce")
	ErrInvalidAudience            = errors.New("invalid audience")
	ErrInvalidAccessTokenHash     = errors.New("access_token hash does not match at_hash claim")
	ErrUnsupportedAlg             = errors.New("unsupported signing algorithm")
	ErrUnsupportedChallengeMethod = errors.New("unsupported challenge method")
)
