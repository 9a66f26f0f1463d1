// Package server provides HTTP routing, middleware, and the OAuth callback handler for the web
// client, the CLI login flow and the backend proxy.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging], [Recover] and [CORS] are the middleware the servers install.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Callback Handler
//
// [CallbackHandler] serves GET /callback, the redirect URI registered with Spotify:
//   - no code: 400 with "Missing authorization code." and a 1s Refresh back to /
//   - code already used by this handler: treated as a failed exchange, no network call
//   - exchange succeeds: token written to the [store.TokenStore], 303 to /
//   - exchange fails: 502 with "Failed to complete Spotify sign-in." and a 1.5s Refresh back to /
//
// The first outcome is also sent on [CallbackHandler.Result], which the CLI login waits on.
//
// No state parameter is checked. A forged redirect carrying an attacker's code is accepted.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
