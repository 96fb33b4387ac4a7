package callback

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/toolbx-labs/webauth/oidc"
)

// AuthCode creates an http.HandlerFunc for the provider's redirect back to
// the application. It consumes the pending login attempt from the session
// and runs the verification sequence in strict order, aborting on the first
// failure:
//
//  1. a pending attempt must exist in the session
//  2. the state parameter must match the attempt's CSRF token
//  3. the authorization code is exchanged (with the PKCE verifier)
//  4. the response must carry an id_token
//  5. the id_token's signature, claims and nonce are verified
//  6. the at_hash claim, when present, must match the access token
//
// Only after all checks pass is the identity written to the session and the
// user agent redirected to the configured post-auth URL. The attempt is
// consumed exactly once: its removal from the session is persisted even when
// a later check fails, so the callback cannot be replayed.
//
// Supported options: WithLogger, WithSessionKeys
func AuthCode(p *oidc.Provider, sessions SessionLoader, opt ...Option) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
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

		// The attempt is single-use. Once removed, the removal is saved even
		// when a later check fails, so a second callback with the same state
		// finds nothing to verify against.
		var attempt oidc.Attempt
		found, removeErr := sess.Remove(keys.Request, &attempt)
		if !found {
			respondErr(w, logger, fmt.Errorf("%s: %w", op, ErrMissingState))
			return
		}
		abort := func(err error) {
			if saveErr := sess.Save(ctx, w); saveErr != nil {
				logger.Error("unable to persist consumed login attempt", "error", saveErr)
			}
			respondErr(w, logger, err)
		}
		if removeErr != nil {
			// a stored attempt that can't be decoded is as good as no
			// attempt at all
			abort(fmt.Errorf("%s: %w: %v", op, ErrMissingState, removeErr))
			return
		}

		if param := r.FormValue("error"); param != "" {
			reqErr := &AuthenErrorResponse{
				Error:       param,
				Description: r.FormValue("error_description"),
				URI:         r.FormValue("error_uri"),
			}
			abort(fmt.Errorf("%s: provider returned error: %s: %w", op, reqErr, oidc.ErrTokenExchangeFailed))
			return
		}

		state := r.FormValue("state")
		if subtle.ConstantTimeCompare([]byte(state), []byte(attempt.State)) != 1 {
			abort(fmt.Errorf("%s: %w", op, ErrInvalidState))
			return
		}

		token, err := p.Exchange(ctx, attempt, r.FormValue("code"))
		if err != nil {
			abort(fmt.Errorf("%s: %w", op, err))
			return
		}
		claims, err := p.VerifyIDToken(ctx, token.IDToken, attempt.Nonce)
		if err != nil {
			abort(fmt.Errorf("%s: %w", op, err))
			return
		}
		if err := oidc.VerifyAccessTokenHash(claims, token.AccessToken); err != nil {
			abort(fmt.Errorf("%s: %w", op, err))
			return
		}

		identity := &Identity{Token: token, Claims: claims}
		if err := sess.Set(keys.Data, identity); err != nil {
			abort(fmt.Errorf("%s: %w", op, err))
			return
		}
		if err := sess.Save(ctx, w); err != nil {
			respondErr(w, logger, fmt.Errorf("%s: %w: %v", op, ErrSessionWrite, err))
			return
		}
		logger.Info("login completed", "sub", claims.Subject)
		http.Redirect(w, r, p.PostAuthRedirectURL(), http.StatusFound)
	}, nil
}
