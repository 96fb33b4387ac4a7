/*
oidc is a package for integrating a web application with an OIDC provider
using the 3-legged authorization code flow with PKCE.

Primary types provided by the package:

* Config: the configuration for the flow (client id/secret, issuer,
redirect URL, requested scopes, supported signing algorithms, etc).

* Provider: created once at startup via discovery against the issuer and
read-only afterwards. It generates authorization URLs, exchanges
authorization codes for tokens and verifies the resulting id_tokens.

* Attempt: the per-login-attempt secret bundle (state, nonce, PKCE code
verifier). Every call to NewAttempt produces fresh secrets from a
cryptographically secure source. An Attempt round-trips through JSON so it
can be stashed in the user's session between the login redirect and the
provider's callback.

* Token: the result of a successful code exchange (access, refresh and id
tokens).

* Claims: the verified id_token claims, produced only by
Provider.VerifyIDToken.

The callback package builds http.HandlerFuncs for the login and callback
endpoints on top of this package.
*/
package oidc
