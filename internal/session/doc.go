// Package session implements the client side of the sign-in flow.
//
// A [Controller] owns one execution context's view of the session: it turns an authorization
// code found on the current [Location] into a stored access token, follows token changes made by
// other contexts through the [store.TokenStore], and keeps the user's top tracks in step with the
// token it holds.
//
// # States
//
//	Unauthenticated -> Authenticating -> Authenticated | AuthFailed
//	Authenticated -> Unauthenticated (logout, rejected token, token removed elsewhere)
//	Unauthenticated -> Authenticated (token written elsewhere)
//
// All transitions happen under one lock. Network calls run on goroutines owned by the controller
// and report back through the same transition functions. Superseded fetches are not cancelled;
// their results are dropped when they arrive.
package session
