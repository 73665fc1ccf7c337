// Package server runs the OAuth handshake and the small HTTP surface around it.
//
// # OAuth Handshake
//
// [Coordinator] issues single-use state tokens bound to a user id and redeems them
// exactly once within a TTL. Unknown, consumed and expired states are
// indistinguishable to the caller. States live in a [StateStore]:
// [MemoryStateStore] for one process, [SQLiteStateStore] when several processes
// share the database.
//
// [OAuthHandler] is the thin HTTP layer on top:
//
//	GET /auth/{provider}/connect?user=ID   redirect to the provider consent page
//	GET /auth/{provider}/callback          redeem state, exchange code, store account
//
// # Router Infrastructure
//
// [BasicRouter] registers ServeMux method patterns and wraps every route with the
// [Middleware] stack ([Recover], [Logging]). [Server] adds /healthz and /metrics and
// shuts down gracefully when its context ends.
package server
