// Package backend implements the proxy that holds the Spotify client secret.
//
// The client never talks to Spotify with the secret. It sends the authorization code here and
// receives an access token, then asks here for its data with that token:
//
//	GET /                       welcome message
//	GET /health                 {"status":"healthy","service":"isoca-api"}
//	GET /auth/exchange?code=    {"access_token":"..."}, 400 without code, 502 on failure
//	GET /data/top-items?access_token=  {"items":[...]}, 401 when Spotify rejects the token
//	GET /api/spotify/status?access_token=  whether Spotify accepts the token
//
// [Spotify] shapes the top tracks: genres come from a second /artists lookup done in batches of
// 50, and the image is the smallest album image.
package backend
