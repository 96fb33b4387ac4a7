package callback

import (
	"fmt"
	"net/http"

	"github.com/toolbx-labs/webauth/oidc"
)

// Login creates an http.HandlerFunc that starts a login: it generates a
// fresh Attempt (CSRF state, nonce, PKCE verifier), stores it in the
// request's session and redirects the user agent to the provider's
// authorization endpoint with a 307. Starting a new login always replaces
// any attempt already pending in the session, invalidating its state.
//
// If the session cannot be persisted the handler responds 500 and does not
// redirect; an attempt whose secrets were never stored could never be
// verified on callback.
//
// Supported options: WithLogger, WithSessionKeys
func Login(p *oidc.Provider, sessions SessionLoader, opt ...Option) (http.HandlerFunc, error) {
	const op = "callback.Login"
	if p == nil {
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	}
	if sessions == nil {
		return nil, fmt.Errorf("%s: session loader is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	logger := opts.withLogger
	keys := opts.withSessionKeys

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sess, err := sessions.LoadSession(r)
		if err != nil {
			respondErr(w, logger, fmt.Errorf("%s: %w", op, err))
			return
		}
		attempt, err := oidc.NewAttempt()
		if err != nil {
			respondErr(w, logger, fmt.Errorf("%s: %w", op, err))
			return
		}
		authURL, err := p.AuthURL(ctx, attempt)
		if err != nil {
			respondErr(w, logger, fmt.Errorf("%s: %w", op, err))
			return
		}
		if err := sess.Set(keys.Request, attempt); err != nil {
			respondErr(w, logger, fmt.Errorf("%s: %w", op, err))
			return
		}
		if err := sess.Save(ctx, w); err != nil {
			respondErr(w, logger, fmt.Errorf("%s: %w: %v", op, ErrSessionWrite, err))
			return
		}
		logger.Debug("starting login attempt", "state", attempt.State)
		http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
	}, nil
}
