/*
session provides cookie-keyed server-side sessions for a web application.

A Manager pairs a Store (where session state lives: in memory, or a SQL
table) with the cookie that carries the session key. Handlers load the
request's Session, read and write JSON-encoded values under string keys, and
explicitly Save before writing their response. The explicit save is what
lets a handler refuse to proceed (e.g. refuse to redirect a user into an
OIDC flow) when its state could not be persisted.

Values round-trip through JSON, so anything the encoding/json package can
handle can be stored. Remove is a read-and-delete in one step, which is how
one-shot secrets (like a login attempt's CSRF state) get their at-most-once
consumption.
*/
package session
