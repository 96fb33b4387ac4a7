/*
callback provides ready-made http.HandlerFuncs for the two legs of an OIDC
authorization code login that a web application has to serve: the login
endpoint that redirects the user agent to the provider, and the callback
endpoint the provider redirects back to.

Login generates the per-attempt secrets (CSRF state, nonce, PKCE verifier),
stashes them in the user's session and redirects to the provider's
authorization endpoint. AuthCode consumes the stashed secrets exactly once
and walks the verification sequence in strict order, aborting on the first
failure: state match, code exchange, id_token presence, id_token signature
and claims, access token hash binding. Only when every check has passed is
the resulting identity written to the session.

Responses on failure are deliberately vague; the details go to the logger
only. A state or at_hash mismatch looks like an attack and is logged at
Error level.
*/
package callback
