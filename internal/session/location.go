package session

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/desertthunder/isoca/internal/shared"
)

// codeParam is the query parameter the identity provider appends to the redirect URI.
const codeParam = "code"

// Location is the address a session was loaded from.
//
// Replace swaps the visible address without triggering a new load.
type Location interface {
	URL() *url.URL
	Replace(u *url.URL)
}

// ExtractCode returns the authorization code carried by u, if any.
func ExtractCode(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}
	code := u.Query().Get(codeParam)
	return code, code != ""
}

// StripCode replaces the address of loc with the same path and no query or fragment.
//
// It reports whether a code was removed; without one loc is left untouched.
func StripCode(loc Location) bool {
	current := loc.URL()
	if _, ok := ExtractCode(current); !ok {
		return false
	}

	loc.Replace(&url.URL{
		Scheme: current.Scheme,
		User:   current.User,
		Host:   current.Host,
		Path:   current.Path,
	})
	return true
}

// MemoryLocation is an in-process [Location].
type MemoryLocation struct {
	mu       sync.Mutex
	u        *url.URL
	replaced int
}

// NewMemoryLocation parses raw into a [MemoryLocation].
func NewMemoryLocation(raw string) (*MemoryLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	return &MemoryLocation{u: u}, nil
}

// URL returns a copy of the current address.
func (l *MemoryLocation) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.u
	return &u
}

func (l *MemoryLocation) Replace(u *url.URL) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *u
	l.u = &copied
	l.replaced++
}

// Navigate points the location at raw, as a new page load would.
func (l *MemoryLocation) Navigate(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.u = u
	return nil
}

// Replacements counts calls to Replace.
func (l *MemoryLocation) Replacements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replaced
}

func (l *MemoryLocation) String() string {
	return l.URL().String()
}
