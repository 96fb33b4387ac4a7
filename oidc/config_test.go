package oidc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		issuer       string
		clientID     string
		clientSecret ClientSecret
		redirectURL  string
		opts         []Option
		wantErr      error
	}{
		{
			name:         "valid",
			issuer:       "https://accounts.example.com",
			clientID:     "client-id",
			clientSecret: "secret",
			redirectURL:  "https://app.example.com/callback",
		},
		{
			name:        "valid-public-client",
			issuer:      "https://accounts.example.com",
			clientID:    "client-id",
			redirectURL: "https://app.example.com/callback",
		},
		{
			name:        "missing-client-id",
			issuer:      "https://accounts.example.com",
			redirectURL: "https://app.example.com/callback",
			wantErr:     ErrInvalidParameter,
		},
		{
			name:     "missing-redirect-url",
			issuer:   "https://accounts.example.com",
			clientID: "client-id",
			wantErr:  ErrInvalidParameter,
		},
		{
			name:        "missing-issuer",
			clientID:    "client-id",
			redirectURL: "https://app.example.com/callback",
			wantErr:     ErrInvalidIssuer,
		},
		{
			name:        "issuer-bad-scheme",
			issuer:      "ldap://accounts.example.com",
			clientID:    "client-id",
			redirectURL: "https://app.example.com/callback",
			wantErr:     ErrInvalidIssuer,
		},
		{
			name:        "unsupported-alg",
			issuer:      "https://accounts.example.com",
			clientID:    "client-id",
			redirectURL: "https://app.example.com/callback",
			opts:        []Option{WithSupportedAlgs(Alg("none"))},
			wantErr:     ErrInvalidParameter,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConfig(tt.issuer, tt.clientID, tt.clientSecret, tt.redirectURL, tt.opts...)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.issuer, c.Issuer)
			assert.Equal(t, "/", c.PostAuthRedirectURL)
		})
	}
}

func TestConfig_Validate_ReportsAllProblems(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	c := &Config{}
	err := c.Validate()
	assert.ErrorIs(err, ErrInvalidParameter)
	assert.ErrorIs(err, ErrInvalidIssuer)
}

func TestNewConfig_Options(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	c, err := NewConfig(
		"https://accounts.example.com",
		"client-id",
		"secret",
		"https://app.example.com/callback",
		WithScopes("profile", "email"),
		WithAudiences("aud1", "aud2"),
		WithSupportedAlgs(RS256, ES256),
		WithPostAuthRedirect("/home"),
	)
	require.NoError(err)
	assert.Equal([]string{"profile", "email"}, c.Scopes)
	assert.Equal([]string{"aud1", "aud2"}, c.Audiences)
	assert.Equal([]Alg{RS256, ES256}, c.SupportedSigningAlgs)
	assert.Equal("/home", c.PostAuthRedirectURL)
}

func TestClientSecret_Redaction(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	secret := ClientSecret("super-secret")
	assert.Equal(RedactedClientSecret, secret.String())

	data, err := json.Marshal(secret)
	require.NoError(err)
	assert.NotContains(string(data), "super-secret")
	assert.Contains(string(data), RedactedClientSecret)
}

func TestConfig_HTTPClient(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	c := &Config{}
	client, err := c.HTTPClient()
	require.NoError(err)
	assert.NotNil(client.Transport)

	c = &Config{ProviderCA: "not a pem block"}
	_, err = c.HTTPClient()
	assert.ErrorIs(err, ErrInvalidCACert)
}
