package callback

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/toolbx-labs/webauth/oidc"
)

var (
	// ErrMissingState means the callback arrived without a usable stored
	// login attempt to verify against: the user never hit the login
	// endpoint, the session expired, the attempt was already consumed, or
	// the stored value could not be decoded.
	ErrMissingState = errors.New("login attempt state is missing from session")

	// ErrInvalidState means the callback's state parameter did not match the
	// stored attempt's CSRF token. Treated as a potential forgery.
	ErrInvalidState = errors.New("login attempt state mismatch")

	// ErrSessionWrite means the session collaborator failed to persist. The
	// attempt is aborted; nothing is partially committed.
	ErrSessionWrite = errors.New("unable to persist session")
)

// AuthenErrorResponse represents an OAuth2 authentication error response
// forwarded by the provider on the callback redirect. See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type AuthenErrorResponse struct {
	Error       string
	Description string
	URI         string
}

func (r *AuthenErrorResponse) String() string {
	return fmt.Sprintf("%s: %s", r.Error, r.Description)
}

// respondErr maps a failure to a non-sensitive response. Full detail is
// logged server-side only; the response body must not reveal which check
// failed beyond its broad category.
func respondErr(w http.ResponseWriter, logger hclog.Logger, err error) {
	status, msg := errStatus(err)
	switch {
	case errors.Is(err, ErrInvalidState), errors.Is(err, oidc.ErrInvalidAccessTokenHash):
		// shaped like an attack (CSRF replay, token substitution)
		logger.Error("rejecting login callback", "error", err)
	default:
		logger.Warn("login callback failed", "error", err)
	}
	http.Error(w, msg, status)
}

// errStatus buckets the error taxonomy into status codes: caller input 400,
// failed verification 403, upstream provider trouble 502, everything else
// (session I/O included) 500.
func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingState):
		return http.StatusBadRequest, "no login attempt found, please restart login"
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, oidc.ErrInvalidIDToken),
		errors.Is(err, oidc.ErrInvalidAccessTokenHash):
		return http.StatusForbidden, "authentication failed"
	case errors.Is(err, oidc.ErrTokenExchangeFailed),
		errors.Is(err, oidc.ErrMissingIDToken):
		return http.StatusBadGateway, "authentication failed, please restart login"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
