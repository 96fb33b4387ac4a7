package oidc

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_Redaction(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	tk := &Token{
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		IDToken:      "id-token-value",
	}
	assert.Equal(RedactedToken, tk.String())
	assert.Equal(RedactedIDToken, tk.IDToken.String())
	assert.Equal(RedactedIDToken, fmt.Sprintf("%s", tk.IDToken))
}

func TestToken_JSONRoundTrip(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)

	tk := &Token{
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		IDToken:      "id-token-value",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}
	data, err := json.Marshal(tk)
	require.NoError(err)

	// tokens round-trip through the session store with real values
	var got Token
	require.NoError(json.Unmarshal(data, &got))
	assert.Equal(tk.AccessToken, got.AccessToken)
	assert.Equal(tk.RefreshToken, got.RefreshToken)
	assert.Equal(tk.IDToken, got.IDToken)
	assert.True(tk.Expiry.Equal(got.Expiry))
}

func TestToken_ExpiredAndValid(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	live := &Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}
	assert.False(live.Expired())
	assert.True(live.Valid())

	expired := &Token{AccessToken: "at", Expiry: time.Now().Add(-time.Hour)}
	assert.True(expired.Expired())
	assert.False(expired.Valid())

	// inside the skew counts as expired
	closeCall := &Token{AccessToken: "at", Expiry: time.Now().Add(time.Second)}
	assert.True(closeCall.Expired())

	zeroExpiry := &Token{AccessToken: "at"}
	assert.False(zeroExpiry.Expired())
	assert.True(zeroExpiry.Valid())

	var nilToken *Token
	assert.False(nilToken.Valid())
	assert.False((&Token{}).Valid())
}
