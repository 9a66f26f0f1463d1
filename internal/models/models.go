package models

import "strings"

// Track represents one of the user's top tracks.
//
// The JSON shape is the wire format of GET /data/top-items.
type Track struct {
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Popularity int      `json:"popularity"`
	Genres     []string `json:"genres"`
	Link       string   `json:"link"`
	Image      *string  `json:"image"` // smallest album image, nil when the album has none
}

// ArtistNames joins the artist names for display.
func (t Track) ArtistNames() string {
	return strings.Join(t.Artists, ", ")
}

// ImageURL returns the image reference or an empty string.
func (t Track) ImageURL() string {
	if t.Image == nil {
		return ""
	}
	return *t.Image
}

// TrackList is an ordered sequence of tracks.
type TrackList []Track

// Clone returns a copy that does not share the backing array with tl.
func (tl TrackList) Clone() TrackList {
	if tl == nil {
		return nil
	}
	out := make(TrackList, len(tl))
	copy(out, tl)
	return out
}

// Genres returns the distinct genres across the list in first-seen order.
func (tl TrackList) Genres() []string {
	seen := make(map[string]bool)
	var genres []string
	for _, t := range tl {
		for _, g := range t.Genres {
			if !seen[g] {
				seen[g] = true
				genres = append(genres, g)
			}
		}
	}
	return genres
}

// TopItemsResponse is the body of GET /data/top-items.
type TopItemsResponse struct {
	Items TrackList `json:"items"`
}

// ExchangeResponse is the body of GET /auth/exchange.
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	Message     string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
}

// ErrorResponse is the body of every non-2xx backend response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SpotifyStatusResponse is the body of GET /api/spotify/status.
type SpotifyStatusResponse struct {
	Connected bool   `json:"spotify_connected"`
	Message   string `json:"message"`
}

// RootResponse is the body of GET / on the backend.
type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}
