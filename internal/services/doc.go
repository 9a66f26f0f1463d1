// Package services implements the client side of the backend proxy and the identity provider.
//
// # Backend Client
//
// [BackendClient] covers the three backend endpoints the client uses:
//   - [BackendClient.Exchange] : GET /auth/exchange?code=..., one attempt, authorization codes are single-use
//   - [BackendClient.TopItems] : GET /data/top-items?access_token=...
//   - [BackendClient.Health] : GET /health, reachability only
//
// # Error Handling
//
// Exchange and fetch failures are typed so the session controller can branch on them:
//   - [ExchangeError] : matches [shared.ErrExchangeFailed] and one of [ErrNetwork], [ErrServer], [ErrMalformedResponse]
//   - [FetchError] : matches [shared.ErrFetchFailed] and one of [ErrUnauthorized], [ErrNetwork], [ErrServer], [ErrMalformedResponse]
//
// Only [ErrUnauthorized] means the token must be discarded.
//
// # Authorization URL
//
// [AuthorizeURL] builds the Spotify consent page URL with [oauth2.Config.AuthCodeURL]: client id,
// the registered /callback redirect URI and the configured scope.
package services
