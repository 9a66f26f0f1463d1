// Package models defines the data shapes shared by the client, the backend proxy and the UIs.
//
//   - [Track] : one entry of the user's top items, as served by the backend's /data/top-items
//   - [TrackList] : an ordered list of tracks, replaced wholesale on every successful fetch
//
// Track lists are never persisted; the only durable value in the system is the access token,
// which lives in the store package.
package models
