// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/isoca/internal/models"
)

// FakeExchanger is a test double for the token exchange.
//
// Codes map to tokens; unknown codes fail. Hold blocks calls until released.
type FakeExchanger struct {
	mu     sync.Mutex
	tokens map[string]string
	err    error
	gate   chan struct{}
	calls  []string
}

// NewFakeExchanger creates a [FakeExchanger] answering code with tokens[code].
func NewFakeExchanger(tokens map[string]string) *FakeExchanger {
	if tokens == nil {
		tokens = map[string]string{}
	}
	return &FakeExchanger{tokens: tokens}
}

// Fail makes every call return err.
func (f *FakeExchanger) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Hold blocks calls until the returned func is called.
func (f *FakeExchanger) Hold() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gate = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *FakeExchanger) Exchange(ctx context.Context, code string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, code)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	token, ok := f.tokens[code]
	if !ok {
		return "", fmt.Errorf("%w: unknown code %q", ErrFake, code)
	}
	return token, nil
}

// Calls returns the codes exchanged so far.
func (f *FakeExchanger) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// ErrFake is returned by fakes for unconfigured input.
var ErrFake = errors.New("fake failure")

// FetchResult is a canned [FakeFetcher] answer.
type FetchResult struct {
	Tracks models.TrackList
	Err    error
}

// FakeFetcher is a test double for the data fetch.
//
// Unconfigured tokens answer with a single track named after the token.
type FakeFetcher struct {
	mu      sync.Mutex
	results map[string]FetchResult
	gates   map[string]chan struct{}
	calls   []string
	started chan string
}

// NewFakeFetcher creates a [FakeFetcher] answering every token with a one-track list named after it.
func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		results: make(map[string]FetchResult),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 64),
	}
}

// Respond sets the answer for token.
func (f *FakeFetcher) Respond(token string, tracks models.TrackList, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[token] = FetchResult{Tracks: tracks, Err: err}
}

// Hold blocks calls for token until the returned func is called.
func (f *FakeFetcher) Hold(token string) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	f.gates[token] = gate
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started receives the token of every call as it begins.
func (f *FakeFetcher) Started() <-chan string {
	return f.started
}

func (f *FakeFetcher) TopItems(ctx context.Context, token string) (models.TrackList, error) {
	f.mu.Lock()
	f.calls = append(f.calls, token)
	gate := f.gates[token]
	f.mu.Unlock()

	select {
	case f.started <- token:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if result, ok := f.results[token]; ok {
		return result.Tracks.Clone(), result.Err
	}
	return models.TrackList{{Name: token}}, nil
}

// Calls returns the tokens fetched with so far.
func (f *FakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// SampleTracks returns a small fixed track list.
func SampleTracks() models.TrackList {
	image := "https://i.scdn.co/image/small"
	return models.TrackList{
		{
			Name:       "Midnight City",
			Artists:    []string{"M83"},
			Popularity: 78,
			Genres:     []string{"french shoegaze", "indietronica"},
			Link:       "https://open.spotify.com/track/1eyzqe2QqGZUmfcPZtrIyt",
			Image:      &image,
		},
		{
			Name:       "Dreams, Pt. 2",
			Artists:    []string{"Fleetwood Mac", "Stevie Nicks"},
			Popularity: 64,
			Genres:     []string{"rock"},
			Link:       "https://open.spotify.com/track/0ofHAoxe9vBkTCp2UQIavz",
		},
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
