package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/models"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/store"
)

// Exchanger trades an authorization code for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// Fetcher loads the data shown for a signed-in user.
//
// Errors matching [services.ErrUnauthorized] mean the token was rejected.
type Fetcher interface {
	TopItems(ctx context.Context, token string) (models.TrackList, error)
}

// Options configures a [Controller].
type Options struct {
	Store     *store.TokenStore
	Exchanger Exchanger
	Fetcher   Fetcher
	Logger    *log.Logger
}

// Controller drives the session state machine of one execution context.
type Controller struct {
	store     *store.TokenStore
	exchanger Exchanger
	fetcher   Fetcher
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu         sync.Mutex
	state      State
	token      string
	tracks     models.TrackList
	notice     string
	exchanging bool
	fetching   bool
	generation uint64
	fetchToken string
	consumed   map[string]struct{}
	pending    int
	idle       chan struct{}
	subs       map[int]chan Snapshot
	nextSub    int
	closed     bool
}

// New creates a [Controller], starts following the token store and makes the initial
// decision for loc:
//  1. loc carries an authorization code: exchange it
//  2. the store holds a token: use it
//  3. otherwise stay unauthenticated without any network call
//
// Background work stops when ctx is done or [Controller.Close] is called.
func New(ctx context.Context, loc Location, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		store:     opts.Store,
		exchanger: opts.Exchanger,
		fetcher:   opts.Fetcher,
		logger:    shared.WithLogger(logger, "component", "session"),
		state:     State{Status: Unauthenticated},
		tracks:    models.TrackList{},
		consumed:  make(map[string]struct{}),
		idle:      idle,
		subs:      make(map[int]chan Snapshot),
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	changes := c.store.Watch(c.ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for change := range changes {
			c.onChange(change)
		}
	}()

	c.Load(ctx, loc)
	return c
}

// Load re-runs the initial decision for loc, as a page reload would.
//
// It does nothing while an exchange is in flight. Starting an exchange drops the results of any
// fetch still in flight. A code this controller already exchanged is
// removed from loc and otherwise ignored; an unchanged token is not fetched again.
func (c *Controller) Load(ctx context.Context, loc Location) {
	code, hasCode := ExtractCode(loc.URL())

	c.mu.Lock()
	if c.exchanging {
		c.mu.Unlock()
		c.logger.Debug("exchange in flight, load ignored")
		return
	}
	if hasCode {
		if _, used := c.consumed[code]; !used {
			c.consumed[code] = struct{}{}
			c.exchanging = true
			c.signOutLocked("")
			c.state = State{Status: Authenticating}
			c.publishLocked()
			c.spawnLocked(func(ctx context.Context) { c.exchange(ctx, code, loc) })
			c.mu.Unlock()
			return
		}
		c.logger.Warn("authorization code already used, ignoring it")
	}
	c.mu.Unlock()

	if hasCode {
		StripCode(loc)
	}

	token, ok := c.store.Get(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exchanging {
		return
	}
	if ok {
		c.authenticateLocked(token)
	} else {
		if c.state.Status != AuthFailed {
			c.state = State{Status: Unauthenticated}
		}
		c.signOutLocked("")
		c.logger.Debug("no authorization code or stored token")
	}
	c.publishLocked()
}

func (c *Controller) exchange(ctx context.Context, code string, loc Location) {
	token, err := c.exchanger.Exchange(ctx, code)
	if err == nil && token == "" {
		err = fmt.Errorf("%w: empty access token", shared.ErrExchangeFailed)
	}

	if err != nil {
		c.logger.Error("token exchange failed", "error", err)
		c.store.Clear(ctx)
		StripCode(loc)

		c.mu.Lock()
		defer c.mu.Unlock()
		c.exchanging = false
		c.signOutLocked("")
		c.state = State{Status: AuthFailed, Reason: err.Error()}
		c.publishLocked()
		return
	}

	c.store.Set(ctx, token)
	StripCode(loc)
	c.logger.Info("signed in", "token", shared.MaskToken(token))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanging = false
	c.authenticateLocked(token)
	c.publishLocked()
}

// authenticateLocked enters Authenticated with token and fetches when the token differs from
// the one of the last issued fetch.
func (c *Controller) authenticateLocked(token string) {
	c.token = token
	c.state = State{Status: Authenticated, Token: token}
	if token != c.fetchToken {
		c.fetchLocked(token)
	}
}

// signOutLocked forgets the token and the data fetched with it.
func (c *Controller) signOutLocked(notice string) {
	c.token = ""
	c.tracks = models.TrackList{}
	c.notice = notice
	c.fetching = false
	c.fetchToken = ""
	c.generation++
	if c.state.Status == Authenticated {
		c.state = State{Status: Unauthenticated}
	}
}

func (c *Controller) fetchLocked(token string) {
	c.generation++
	gen := c.generation
	c.fetchToken = token
	c.fetching = true
	c.spawnLocked(func(ctx context.Context) {
		tracks, err := c.fetcher.TopItems(ctx, token)
		c.finishFetch(ctx, gen, token, tracks, err)
	})
}

func (c *Controller) finishFetch(ctx context.Context, gen uint64, token string, tracks models.TrackList, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation || token != c.token || c.state.Status != Authenticated {
		c.logger.Debug("discarding stale fetch result", "generation", gen, "latest", c.generation)
		return
	}
	c.fetching = false

	switch {
	case err == nil:
		if tracks == nil {
			tracks = models.TrackList{}
		}
		c.tracks = tracks
		c.notice = ""
		c.logger.Debug("tracks loaded", "count", len(tracks))
	case errors.Is(err, services.ErrUnauthorized):
		c.logger.Warn("access token rejected", "error", err)
		c.store.Clear(ctx)
		c.state = State{Status: Unauthenticated}
		c.signOutLocked(NoticeReauthenticate)
	default:
		c.logger.Error("fetch failed", "error", err)
		c.tracks = models.TrackList{}
		c.notice = NoticeFetchFailed
	}
	c.publishLocked()
}

// onChange applies a token write made by another context.
func (c *Controller) onChange(change store.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if change.Present && change.Value != "" {
		c.logger.Info("token changed elsewhere", "origin", change.Origin)
		c.authenticateLocked(change.Value)
	} else {
		c.logger.Info("token removed elsewhere", "origin", change.Origin)
		c.state = State{Status: Unauthenticated}
		c.signOutLocked("")
	}
	c.publishLocked()
}

// Refresh fetches again with the current token. It does nothing when signed out.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != Authenticated || c.token == "" {
		return
	}
	c.notice = ""
	c.fetchLocked(c.token)
	c.publishLocked()
}

// Logout removes the token from the store and clears the session.
func (c *Controller) Logout() {
	c.store.Clear(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = State{Status: Unauthenticated}
	c.signOutLocked("")
	c.publishLocked()
	c.logger.Info("signed out")
}

// Snapshot returns the current session.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:   c.state,
		Tracks:  c.tracks.Clone(),
		Notice:  c.notice,
		Loading: c.fetching,
	}
}

// Subscribe returns a channel of snapshots, starting with the current one.
//
// Only the latest undelivered snapshot is kept. The returned func unsubscribes and closes the
// channel; [Controller.Close] closes every channel.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if c.closed {
		ch <- c.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Settle waits until no exchange or fetch is in flight and returns the resulting snapshot.
func (c *Controller) Settle(ctx context.Context) (Snapshot, error) {
	for {
		c.mu.Lock()
		if c.pending == 0 {
			snap := c.snapshotLocked()
			c.mu.Unlock()
			return snap, nil
		}
		idle := c.idle
		c.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return c.Snapshot(), fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err())
		}
	}
}

// spawnLocked runs fn on a goroutine tracked by Settle and Close.
func (c *Controller) spawnLocked(fn func(ctx context.Context)) {
	if c.closed {
		c.exchanging = false
		c.fetching = false
		return
	}
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		defer c.done()
		fn(c.ctx)
	}()
}

func (c *Controller) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
}

// Close stops following the store, waits for background work and closes subscriptions.
func (c *Controller) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		c.wg.Wait()

		c.mu.Lock()
		defer c.mu.Unlock()
		for id, ch := range c.subs {
			delete(c.subs, id)
			close(ch)
		}
	})
}
