package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	jose "gopkg.in/square/go-jose.v2"

	strutil "github.com/toolbx-labs/webauth/internal/strutils"
)

// Provider provides integration with an OIDC provider using the typical
// 3-legged authorization code flow with PKCE.
//
// A Provider is created once at startup (which performs discovery against
// the issuer) and is read-only afterwards, so it's safe for concurrent use
// by every login attempt without synchronization.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	client   *http.Client

	// algs is the pinned set of signature algorithms accepted for
	// id_tokens: the configured override when present, otherwise the set
	// the provider advertised at discovery time.
	algs []Alg

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like refreshing JWKs key sets.
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider for the OIDC authorization
// code flow. Initializing the provider includes an http request to the
// issuer's discovery endpoint; a failure there is returned to the caller and
// should be treated as fatal to startup, not retried per-request.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with its background ctx/cancel allows
	// p.Done() to release resources when returning errors from this
	// function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client

	provider, err := oidc.NewProvider(HTTPClientContext(p.backgroundCtx, client), c.Issuer) // makes http req to issuer for discovery
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		// we don't know what's causing the problem, so we won't classify the
		// error with a sentinel
		return nil, fmt.Errorf("%s: unable to create provider: %w", op, err)
	}
	p.provider = provider

	if p.algs, err = pinSigningAlgs(c, provider); err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

// pinSigningAlgs resolves the accepted id_token signature algorithm set: the
// config's override when present, otherwise whatever the provider advertised
// at discovery. Tokens declaring anything outside this set (including
// "none") fail verification.
func pinSigningAlgs(c *Config, provider *oidc.Provider) ([]Alg, error) {
	const op = "oidc.pinSigningAlgs"
	if len(c.SupportedSigningAlgs) > 0 {
		return c.SupportedSigningAlgs, nil
	}
	var discovered struct {
		Algs []string `json:"id_token_signing_alg_values_supported"`
	}
	if err := provider.Claims(&discovered); err != nil {
		return nil, fmt.Errorf("%s: unable to read discovery claims: %w", op, err)
	}
	var algs []Alg
	for _, a := range discovered.Algs {
		// drop anything we can't verify, notably "none"
		if supportedAlgorithms[Alg(a)] {
			algs = append(algs, Alg(a))
		}
	}
	if len(algs) == 0 {
		return nil, fmt.Errorf("%s: provider advertised no supported id_token signing algorithms: %w", op, ErrUnsupportedAlg)
	}
	return algs, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// SupportedSigningAlgs returns the pinned set of signature algorithms
// accepted for id_tokens.
func (p *Provider) SupportedSigningAlgs() []Alg {
	algs := make([]Alg, len(p.algs))
	copy(algs, p.algs)
	return algs
}

// PostAuthRedirectURL returns the configured URL a successful callback
// redirects the user agent to.
func (p *Provider) PostAuthRedirectURL() string {
	return p.config.PostAuthRedirectURL
}

// oauth2Config assembles the oauth2 config for this provider. The "openid"
// scope is always requested first and duplicates are dropped.
func (p *Provider) oauth2Config() oauth2.Config {
	scopes := strutil.RemoveDuplicatesStable(append([]string{oidc.ScopeOpenID}, p.config.Scopes...), false)
	return oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  p.config.RedirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       scopes,
	}
}

// AuthURL will generate the URL a login handler redirects the user agent to,
// kicking off the authorization code flow for the given Attempt. The URL
// embeds the attempt's state as the CSRF token, its nonce, and the S256
// challenge of its PKCE verifier.
func (p *Provider) AuthURL(ctx context.Context, attempt Attempt) (string, error) {
	const op = "oidc.(Provider).AuthURL"
	if err := attempt.Validate(); err != nil {
		return "", fmt.Errorf("%s: invalid attempt: %w", op, err)
	}
	oauth2Config := p.oauth2Config()
	authCodeOpts := []oauth2.AuthCodeOption{
		oidc.Nonce(attempt.Nonce),
		oauth2.SetAuthURLParam("code_challenge", attempt.PKCEVerifier.Challenge()),
		oauth2.SetAuthURLParam("code_challenge_method", string(attempt.PKCEVerifier.Method())),
	}
	return oauth2Config.AuthCodeURL(attempt.State, authCodeOpts...), nil
}

// Exchange will request a token from the provider's token endpoint, using
// the authorizationCode received in the callback and the attempt's PKCE
// verifier. It is a blocking network call; thread a cancellable or
// deadline-carrying ctx through it, since the exchange itself enforces no
// timeout.
//
// Exchange does not verify the returned id_token; see VerifyIDToken. It does
// fail with ErrMissingIDToken when the token response carries none, and with
// ErrTokenExchangeFailed on any transport, provider or malformed-response
// error. Failed exchanges are never retried here: the attempt is terminal
// and the user may restart the login, generating fresh secrets.
func (p *Provider) Exchange(ctx context.Context, attempt Attempt, authorizationCode string) (*Token, error) {
	const op = "oidc.(Provider).Exchange"
	if err := attempt.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid attempt: %w", op, err)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}
	oidcCtx := HTTPClientContext(ctx, p.client)

	oauth2Config := p.oauth2Config()
	oauth2Token, err := oauth2Config.Exchange(oidcCtx, authorizationCode,
		oauth2.SetAuthURLParam("code_verifier", attempt.PKCEVerifier.Verifier()),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange authorization code: %w: %v", op, ErrTokenExchangeFailed, err)
	}

	idToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingIDToken)
	}
	return &Token{
		AccessToken:  oauth2Token.AccessToken,
		RefreshToken: oauth2Token.RefreshToken,
		Expiry:       oauth2Token.Expiry,
		IDToken:      IDToken(idToken),
	}, nil
}

// VerifyIDToken will verify the inbound id_token and return its claims. It
// verifies the signature against the provider's published signing keys
// (restricted to the pinned algorithm set; an unsigned token can never
// pass), and validates the standard claims: issuer equals the configured
// issuer, audience contains the configured client id (plus any extra
// configured audiences), expiry has not passed, and the token's nonce equals
// the one generated when the login attempt started.
//
// See: https://openid.net/specs/openid-connect-core-1_0.html#IDTokenValidation
func (p *Provider) VerifyIDToken(ctx context.Context, t IDToken, nonce string) (*Claims, error) {
	const op = "oidc.(Provider).VerifyIDToken"
	if t == "" {
		return nil, fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	}
	if nonce == "" {
		return nil, fmt.Errorf("%s: nonce is empty: %w", op, ErrInvalidParameter)
	}
	algs := make([]string, 0, len(p.algs))
	for _, a := range p.algs {
		algs = append(algs, string(a))
	}
	verifier := p.provider.Verifier(&oidc.Config{
		SupportedSigningAlgs: algs,
		ClientID:             p.config.ClientID,
	})

	oidcIDToken, err := verifier.Verify(ctx, string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidIDToken, err)
	}

	if oidcIDToken.Nonce != nonce {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidIDToken, ErrInvalidNonce)
	}

	if len(p.config.Audiences) > 0 {
		var found bool
		for _, v := range p.config.Audiences {
			if strutil.StrListContains(oidcIDToken.Audience, v) {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidIDToken, ErrInvalidAudience)
		}
	}

	alg, err := signingAlgOf(string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var raw json.RawMessage
	if err := oidcIDToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("%s: unable to read id_token claims: %w", op, err)
	}

	return &Claims{
		Subject:         oidcIDToken.Subject,
		Issuer:          oidcIDToken.Issuer,
		Audience:        oidcIDToken.Audience,
		Expiry:          oidcIDToken.Expiry,
		Nonce:           oidcIDToken.Nonce,
		AccessTokenHash: oidcIDToken.AccessTokenHash,
		SigningAlg:      alg,
		Raw:             raw,
	}, nil
}

// signingAlgOf extracts the signature algorithm a (just verified) id_token
// declares, which the access token hash check depends on.
func signingAlgOf(raw string) (Alg, error) {
	const op = "oidc.signingAlgOf"
	jws, err := jose.ParseSigned(raw)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse id_token: %w", op, err)
	}
	if len(jws.Signatures) == 0 {
		return "", fmt.Errorf("%s: id_token has no signature: %w", op, ErrUnsupportedAlg)
	}
	alg := Alg(jws.Signatures[0].Header.Algorithm)
	if !supportedAlgorithms[alg] {
		return "", fmt.Errorf("%s: %q: %w", op, alg, ErrUnsupportedAlg)
	}
	return alg, nil
}
