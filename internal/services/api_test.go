package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/isoca/internal/shared"
	tu "github.com/desertthunder/isoca/internal/testing"
)

func newBackend(t *testing.T, h http.HandlerFunc) *BackendClient {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return NewBackendClient(server.URL, server.Client())
}

func TestBackendClient(t *testing.T) {
	t.Run("NewBackendClient", func(t *testing.T) {
		t.Run("Defaults", func(t *testing.T) {
			c := NewBackendClient("", nil)
			if c.baseURL != defaultBackendURL {
				t.Errorf("expected base URL %s, got %s", defaultBackendURL, c.baseURL)
			}
			if c.httpClient != http.DefaultClient {
				t.Error("expected default HTTP client")
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			c := NewBackendClient("http://example.com/", nil)
			if c.baseURL != "http://example.com" {
				t.Errorf("expected trimmed base URL, got %s", c.baseURL)
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/echo" {
				t.Errorf("expected path /echo, got %s", r.URL.Path)
			}
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("expected Accept header, got %q", r.Header.Get("Accept"))
			}
			w.WriteHeader(http.StatusTeapot)
			w.Write([]byte(r.URL.Query().Get("q")))
		})

		resp, err := c.Get(context.Background(), "/echo", map[string][]string{"q": {"a b"}})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusTeapot {
			t.Errorf("expected status 418, got %d", resp.StatusCode)
		}
		if resp.OK() {
			t.Error("expected non-2xx response")
		}
		if string(resp.Body) != "a b" {
			t.Errorf("expected body 'a b', got %q", resp.Body)
		}
	})

	t.Run("Get Transport Error", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection reset"))}
		c := NewBackendClient("http://backend.test", client)

		if _, err := c.Get(context.Background(), "/health", nil); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}

		_, err := c.Exchange(context.Background(), "abc123")
		if !errors.Is(err, ErrNetwork) || !errors.Is(err, shared.ErrExchangeFailed) {
			t.Errorf("expected network exchange error, got %v", err)
		}
	})

	t.Run("Get Read Failure", func(t *testing.T) {
		newClient := func() *BackendClient {
			resp := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: &tu.FCloser{}}
			return NewBackendClient("http://backend.test", &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)})
		}

		_, err := newClient().Get(context.Background(), "/health", nil)
		if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "failed to read response") {
			t.Errorf("expected read failure, got %v", err)
		}

		_, err = newClient().TopItems(context.Background(), "tok1")
		if !errors.Is(err, ErrNetwork) || errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected network fetch error, got %v", err)
		}
	})

	t.Run("Exchange", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/auth/exchange" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if code := r.URL.Query().Get("code"); code != "abc123" {
					t.Errorf("expected code abc123, got %s", code)
				}
				w.Write([]byte(`{"access_token":"tok1","message":"ok"}`))
			})

			token, err := c.Exchange(context.Background(), "abc123")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if token != "tok1" {
				t.Errorf("expected tok1, got %s", token)
			}
		})

		tests := []struct {
			name    string
			handler http.HandlerFunc
			kind    error
		}{
			{
				name: "Server Error",
				handler: func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusBadGateway)
					w.Write([]byte(`{"error":"invalid_grant"}`))
				},
				kind: ErrServer,
			},
			{
				name: "Malformed Body",
				handler: func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(`not json`))
				},
				kind: ErrMalformedResponse,
			},
			{
				name: "Missing Token",
				handler: func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(`{"message":"no token"}`))
				},
				kind: ErrMalformedResponse,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := newBackend(t, tt.handler)
				_, err := c.Exchange(context.Background(), "abc123")
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, tt.kind) {
					t.Errorf("expected %v, got %v", tt.kind, err)
				}
				if !errors.Is(err, shared.ErrExchangeFailed) {
					t.Errorf("expected ErrExchangeFailed, got %v", err)
				}

				var exErr *ExchangeError
				if !errors.As(err, &exErr) {
					t.Fatalf("expected *ExchangeError, got %T", err)
				}
			})
		}

		t.Run("Server Error Message", func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`{"error":"invalid_grant"}`))
			})
			_, err := c.Exchange(context.Background(), "abc123")
			if !strings.Contains(err.Error(), "invalid_grant") || !strings.Contains(err.Error(), "502") {
				t.Errorf("expected status and message in error, got %v", err)
			}
		})

		t.Run("Network Error", func(t *testing.T) {
			server := httptest.NewServer(http.NotFoundHandler())
			server.Close()

			c := NewBackendClient(server.URL, nil)
			_, err := c.Exchange(context.Background(), "abc123")
			if !errors.Is(err, ErrNetwork) {
				t.Errorf("expected ErrNetwork, got %v", err)
			}
		})
	})

	t.Run("TopItems", func(t *testing.T) {
		t.Run("Success", func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/data/top-items" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if tok := r.URL.Query().Get("access_token"); tok != "tok1" {
					t.Errorf("expected access_token tok1, got %s", tok)
				}
				w.Write([]byte(`{"items":[{"name":"Song","artists":["A","B"],"popularity":70,"genres":["rock"],"link":"https://open.spotify.com/track/1","image":null}]}`))
			})

			tracks, err := c.TopItems(context.Background(), "tok1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 {
				t.Fatalf("expected 1 track, got %d", len(tracks))
			}
			if tracks[0].Name != "Song" || tracks[0].ArtistNames() != "A, B" {
				t.Errorf("unexpected track %+v", tracks[0])
			}
			if tracks[0].Image != nil {
				t.Errorf("expected nil image, got %v", *tracks[0].Image)
			}
		})

		t.Run("Empty Items", func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			})
			tracks, err := c.TopItems(context.Background(), "tok1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if tracks == nil || len(tracks) != 0 {
				t.Errorf("expected empty non-nil list, got %v", tracks)
			}
		})

		tests := []struct {
			name   string
			status int
			body   string
			kind   error
		}{
			{name: "Unauthorized", status: http.StatusUnauthorized, body: `{"error":"expired"}`, kind: ErrUnauthorized},
			{name: "Server Error", status: http.StatusInternalServerError, body: ``, kind: ErrServer},
			{name: "Forbidden", status: http.StatusForbidden, body: ``, kind: ErrServer},
			{name: "Malformed", status: http.StatusOK, body: `[`, kind: ErrMalformedResponse},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				})

				_, err := c.TopItems(context.Background(), "tok1")
				if !errors.Is(err, tt.kind) {
					t.Errorf("expected %v, got %v", tt.kind, err)
				}
				if !errors.Is(err, shared.ErrFetchFailed) {
					t.Errorf("expected ErrFetchFailed, got %v", err)
				}
				var fetchErr *FetchError
				if !errors.As(err, &fetchErr) || fetchErr.StatusCode != tt.status {
					t.Errorf("expected *FetchError with status %d, got %v", tt.status, err)
				}
			})
		}

		t.Run("Network Error", func(t *testing.T) {
			server := httptest.NewServer(http.NotFoundHandler())
			server.Close()

			_, err := NewBackendClient(server.URL, nil).TopItems(context.Background(), "tok1")
			if !errors.Is(err, ErrNetwork) {
				t.Errorf("expected ErrNetwork, got %v", err)
			}
			if errors.Is(err, ErrUnauthorized) {
				t.Error("network error must not be classified as unauthorized")
			}
		})
	})

	t.Run("Health", func(t *testing.T) {
		t.Run("Healthy", func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"healthy","service":"isoca-api"}`))
			})
			status, err := c.Health(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !status.Reachable || status.Status != "healthy" || status.Service != "isoca-api" {
				t.Errorf("unexpected status %+v", status)
			}
		})

		t.Run("Unhealthy", func(t *testing.T) {
			c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			})
			status, err := c.Health(context.Background())
			if !errors.Is(err, ErrServer) {
				t.Errorf("expected ErrServer, got %v", err)
			}
			if !status.Reachable {
				t.Error("expected reachable status")
			}
		})

		t.Run("Unreachable", func(t *testing.T) {
			server := httptest.NewServer(http.NotFoundHandler())
			server.Close()

			status, err := NewBackendClient(server.URL, nil).Health(context.Background())
			if !errors.Is(err, ErrNetwork) {
				t.Errorf("expected ErrNetwork, got %v", err)
			}
			if status.Reachable {
				t.Error("expected unreachable status")
			}
		})
	})
}

func TestAuthorizeURL(t *testing.T) {
	cfg := shared.SpotifyConfig{
		ClientID:     "client-1",
		ClientSecret: "secret",
		RedirectURI:  "http://127.0.0.1:4200/callback",
		Scope:        "user-top-read",
	}

	authURL := AuthorizeURL(cfg)

	for _, want := range []string{
		spotifyAuthURL,
		"response_type=code",
		"client_id=client-1",
		"redirect_uri=http%3A%2F%2F127.0.0.1%3A4200%2Fcallback",
		"scope=user-top-read",
	} {
		if !strings.Contains(authURL, want) {
			t.Errorf("expected %q in %s", want, authURL)
		}
	}

	if strings.Contains(authURL, "secret") {
		t.Error("authorize URL must not carry the client secret")
	}

	t.Run("AuthConfig", func(t *testing.T) {
		c := AuthConfig(cfg)
		if c.Endpoint.TokenURL != spotifyTokenURL {
			t.Errorf("expected token URL %s, got %s", spotifyTokenURL, c.Endpoint.TokenURL)
		}
		if len(c.Scopes) != 1 || c.Scopes[0] != "user-top-read" {
			t.Errorf("unexpected scopes %v", c.Scopes)
		}
	})
}
