// Spotify Web API client used by the backend proxy
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/models"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"
	artistsPerCall = 50
	maxTopLimit    = 50
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	Popularity   int             `json:"popularity"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyArtist represents a Spotify artist.
//
// Genres are only populated by the /artists endpoint, not on track objects.
type SpotifyArtist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// SpotifyAlbum represents a Spotify album. Images are ordered widest first.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type topTracksPage struct {
	Items []SpotifyTrack `json:"items"`
}

type severalArtists struct {
	Artists []*SpotifyArtist `json:"artists"`
}

// APIError is a non-2xx answer from Spotify.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
}

// Unauthorized reports whether Spotify rejected the access token.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// SpotifyOptions overrides the endpoints and limits of a [Spotify] client.
type SpotifyOptions struct {
	APIBaseURL string
	AuthURL    string
	TokenURL   string
	TopLimit   int
	RateLimit  float64 // requests per second, 0 for unlimited
	HTTPClient *http.Client
}

// Spotify calls the Spotify accounts service and Web API on behalf of the client.
type Spotify struct {
	config     *oauth2.Config
	apiBase    string
	httpClient *http.Client
	limiter    *rate.Limiter
	topLimit   int
	logger     *log.Logger
}

// NewSpotify creates a [Spotify] client from the application credentials.
func NewSpotify(creds shared.SpotifyConfig, opts SpotifyOptions, logger *log.Logger) (*Spotify, error) {
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}
	if creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	config := services.AuthConfig(creds)
	config.Endpoint.AuthStyle = oauth2.AuthStyleInHeader
	if opts.AuthURL != "" {
		config.Endpoint.AuthURL = opts.AuthURL
	}
	if opts.TokenURL != "" {
		config.Endpoint.TokenURL = opts.TokenURL
	}

	if opts.APIBaseURL == "" {
		opts.APIBaseURL = spotifyBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.TopLimit <= 0 || opts.TopLimit > maxTopLimit {
		opts.TopLimit = 20
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Spotify{
		config:     config,
		apiBase:    strings.TrimRight(opts.APIBaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
		topLimit:   opts.TopLimit,
		logger:     shared.WithLogger(logger, "component", "spotify"),
	}, nil
}

// Exchange trades an authorization code for an access token using the client secret.
func (s *Spotify) Exchange(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange auth code: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", shared.ErrExchangeFailed)
	}
	return token.AccessToken, nil
}

// doRequest performs an authenticated GET request to the Spotify API.
func (s *Spotify) doRequest(ctx context.Context, token, endpoint string, result any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// UserProfile retrieves the profile of the token's owner.
func (s *Spotify) UserProfile(ctx context.Context, token string) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, token, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SeveralArtists retrieves artists by ID in batches of 50, concurrently.
func (s *Spotify) SeveralArtists(ctx context.Context, token string, ids []string) ([]SpotifyArtist, error) {
	chunks := chunk(ids, artistsPerCall)
	batches := make([][]*SpotifyArtist, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, c := range chunks {
		g.Go(func() error {
			var response severalArtists
			endpoint := "/artists?ids=" + url.QueryEscape(strings.Join(c, ","))
			if err := s.doRequest(gctx, token, endpoint, &response); err != nil {
				return err
			}
			batches[i] = response.Artists
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var artists []SpotifyArtist
	for _, batch := range batches {
		for _, a := range batch {
			if a != nil {
				artists = append(artists, *a)
			}
		}
	}
	return artists, nil
}

// TopTracks returns the user's top tracks shaped for the client.
//
// Each track carries the deduplicated genres of its artists, its Spotify link and the smallest
// album image.
func (s *Spotify) TopTracks(ctx context.Context, token string) (models.TrackList, error) {
	var page topTracksPage
	if err := s.doRequest(ctx, token, fmt.Sprintf("/me/top/tracks?limit=%d", s.topLimit), &page); err != nil {
		return nil, err
	}

	var ids []string
	seen := make(map[string]bool)
	for _, t := range page.Items {
		for _, a := range t.Artists {
			if a.ID != "" && !seen[a.ID] {
				seen[a.ID] = true
				ids = append(ids, a.ID)
			}
		}
	}

	genres := make(map[string][]string, len(ids))
	if len(ids) > 0 {
		artists, err := s.SeveralArtists(ctx, token, ids)
		if err != nil {
			return nil, err
		}
		for _, a := range artists {
			genres[a.ID] = a.Genres
		}
	}

	tracks := make(models.TrackList, 0, len(page.Items))
	for _, t := range page.Items {
		tracks = append(tracks, shapeTrack(t, genres))
	}

	s.logger.Debug("top tracks", "count", len(tracks), "artists", len(ids))
	return tracks, nil
}

func shapeTrack(t SpotifyTrack, genres map[string][]string) models.Track {
	track := models.Track{
		Name:       t.Name,
		Artists:    make([]string, 0, len(t.Artists)),
		Popularity: t.Popularity,
		Genres:     []string{},
		Link:       t.ExternalURLs.Spotify,
	}

	seen := make(map[string]bool)
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, a.Name)
		for _, g := range genres[a.ID] {
			if !seen[g] {
				seen[g] = true
				track.Genres = append(track.Genres, g)
			}
		}
	}

	if images := t.Album.Images; len(images) > 0 {
		smallest := images[len(images)-1].URL
		track.Image = &smallest
	}

	return track
}

func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// isUnauthorized reports whether err is Spotify rejecting the token.
func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
