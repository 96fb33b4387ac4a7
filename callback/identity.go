package callback

import (
	"github.com/toolbx-labs/webauth/oidc"
)

// SessionKeys are the session keys under which the handlers store their
// data.
type SessionKeys struct {
	// Request holds the in-flight attempt's secret bundle between Login and
	// AuthCode.
	Request string

	// Data holds the Identity of a completed login.
	Data string
}

// DefaultSessionKeys returns the keys used when none are configured.
func DefaultSessionKeys() SessionKeys {
	return SessionKeys{
		Request: "oidc_request",
		Data:    "oidc_data",
	}
}

// Identity is the durable result of a completed login: the token response
// and the verified id_token claims. It is only ever written to the session
// after the state match, the code exchange, the id_token verification and
// the access token hash check have all succeeded.
type Identity struct {
	Token  *oidc.Token  `json:"token"`
	Claims *oidc.Claims `json:"claims"`
}

// CurrentIdentity reads the logged-in identity from a session, if a login
// has completed. The boolean reports whether one was present.
func CurrentIdentity(sess SessionHandle, keys SessionKeys) (*Identity, bool, error) {
	var identity Identity
	found, err := sess.Get(keys.Data, &identity)
	if err != nil || !found {
		return nil, found, err
	}
	return &identity, true, nil
}
