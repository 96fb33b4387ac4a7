// webauth provides a collection of related packages for adding
// authenticated sessions to a server-side Go web application: an OIDC
// relying-party core (oidc), ready-made login/callback http handlers
// (callback), a cookie-keyed server-side session layer (session), a request
// logging middleware (requestlog) and a small websocket wrapper (ws).
//
// See README.md
package webauth
