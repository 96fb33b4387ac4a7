package oidc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	strutil "github.com/toolbx-labs/webauth/internal/strutils"
)

// ClientSecret is the relying party's secret. Its String() and MarshalJSON()
// redact the value, so it's safe to log a Config.
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (s ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (s ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for a typical 3-legged OIDC
// authorization code flow with PKCE. It is immutable once passed to
// NewProvider and is then shared read-only by every login attempt.
type Config struct {
	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret. It may be empty for public
	// clients, since the flow always carries a PKCE verifier.
	ClientSecret ClientSecret

	// Scopes is a list of additional oidc scopes to request of the provider.
	// The required "openid" scope is always requested and doesn't need to be
	// part of this optional list.
	Scopes []string

	// Issuer is a case-sensitive URL string using the https scheme that
	// contains scheme, host, and optionally, port number and path components
	// and no query or fragment components. Discovery happens against
	// {Issuer}/.well-known/openid-configuration.
	Issuer string

	// RedirectURL is the URL of the application's callback endpoint, where
	// the provider sends the user agent after authentication.
	RedirectURL string

	// PostAuthRedirectURL is where a successful callback sends the user
	// agent. Defaults to "/".
	PostAuthRedirectURL string

	// SupportedSigningAlgs is a list of signing algorithms accepted for
	// id_tokens. When empty, the set advertised by the provider at discovery
	// time is used. "none" is never accepted.
	SupportedSigningAlgs []Alg

	// Audiences is an optional list of case-sensitive strings used when
	// verifying an id_token's "aud" claim, in addition to the ClientID.
	Audiences []string

	// ProviderCA is an optional CA cert to use when sending requests to the
	// provider.
	ProviderCA string

	// Logger is an optional logger
	Logger hclog.Logger
}

// NewConfig composes a new config for a provider.
//
// Supported options: WithScopes, WithAudiences, WithProviderCA,
// WithSupportedAlgs, WithPostAuthRedirect, WithConfigLogger
func NewConfig(issuer string, clientID string, clientSecret ClientSecret, redirectURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Issuer:               issuer,
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		RedirectURL:          redirectURL,
		PostAuthRedirectURL:  opts.withPostAuthRedirect,
		Scopes:               opts.withScopes,
		Audiences:            opts.withAudiences,
		SupportedSigningAlgs: opts.withSupportedAlgs,
		ProviderCA:           opts.withProviderCA,
		Logger:               opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration. All problems found are reported, not
// just the first. Among other validations, it verifies the issuer is not
// empty, but it doesn't verify the Issuer is discoverable via an http
// request.
func (c *Config) Validate() error {
	const op = "oidc.(Config).Validate"
	if c == nil {
		return fmt.Errorf("%s: config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if c.RedirectURL == "" {
		result = multierror.Append(result, fmt.Errorf("redirect URL is empty: %w", ErrInvalidParameter))
	}
	switch u, err := url.Parse(c.Issuer); {
	case c.Issuer == "":
		result = multierror.Append(result, fmt.Errorf("issuer is empty: %w", ErrInvalidIssuer))
	case err != nil:
		result = multierror.Append(result, fmt.Errorf("issuer %q is invalid: %w", c.Issuer, ErrInvalidIssuer))
	case !strutil.StrListContains([]string{"https", "http"}, u.Scheme):
		result = multierror.Append(result, fmt.Errorf("issuer %q scheme is not http or https: %w", c.Issuer, ErrInvalidIssuer))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("unsupported algorithm %q: %w", a, ErrInvalidParameter))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HTTPClient returns a new http client for the provider configured, trusting
// the ProviderCA when one is set and the system CA chain otherwise.
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "oidc.(Config).HTTPClient"
	tr := cleanhttp.DefaultPooledTransport()

	if c.ProviderCA != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(c.ProviderCA)); !ok {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		tr.TLSClientConfig = &tls.Config{
			RootCAs: certPool,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options for Config
type configOptions struct {
	withScopes           []string
	withAudiences        []string
	withProviderCA       string
	withSupportedAlgs    []Alg
	withPostAuthRedirect string
	withLogger           hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func configDefaults() configOptions {
	return configOptions{
		withPostAuthRedirect: "/",
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for the provider's config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithAudiences provides an optional list of audiences for the provider's config
func WithAudiences(auds ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withAudiences = auds
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithSupportedAlgs pins the signing algorithms accepted for id_tokens,
// overriding the set advertised by the provider at discovery time.
func WithSupportedAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedAlgs = algs
		}
	}
}

// WithPostAuthRedirect provides the URL a successful callback redirects the
// user agent to.
func WithPostAuthRedirect(url string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withPostAuthRedirect = url
		}
	}
}

// WithConfigLogger provides an optional logger for the provider's config
func WithConfigLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withLogger = l
		}
	}
}
