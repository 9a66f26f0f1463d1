package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/isoca/internal/shared"
	"github.com/desertthunder/isoca/internal/store"
)

const (
	MissingCodeMessage   = "Missing authorization code."
	ExchangeFailMessage  = "Failed to complete Spotify sign-in."
	defaultMissingDelay  = time.Second
	defaultFailureDelay  = 1500 * time.Millisecond
	defaultCallbackRoute = "/callback"
)

// Exchanger trades an authorization code for an access token.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// CallbackResult is the outcome of the first callback request.
type CallbackResult struct {
	Token string
	err   error
}

func (c CallbackResult) Error() error {
	return c.err
}

// CallbackHandler completes the sign-in on the identity provider's redirect.
//
// It exchanges the code, stores the token and sends the browser home. It never fetches data;
// the session on the home page picks the stored token up.
type CallbackHandler struct {
	exchanger Exchanger
	tokens    *store.TokenStore
	logger    *log.Logger
	home      string

	// MissingDelay and FailureDelay are how long the error page shows before returning home.
	MissingDelay time.Duration
	FailureDelay time.Duration

	mu       sync.Mutex
	consumed map[string]struct{}
	results  chan CallbackResult
	once     sync.Once
}

// NewCallbackHandler creates a [CallbackHandler] that returns to "/".
func NewCallbackHandler(exchanger Exchanger, tokens *store.TokenStore, logger *log.Logger) *CallbackHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &CallbackHandler{
		exchanger:    exchanger,
		tokens:       tokens,
		logger:       shared.WithLogger(logger, "component", "callback"),
		home:         "/",
		MissingDelay: defaultMissingDelay,
		FailureDelay: defaultFailureDelay,
		consumed:     make(map[string]struct{}),
		results:      make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{defaultCallbackRoute}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")

	if code == "" {
		err := shared.ErrCodeMissing
		if reason := query.Get("error"); reason != "" {
			err = fmt.Errorf("%w: %s", shared.ErrCodeMissing, reason)
		}
		h.logger.Warn("callback without authorization code", "error", err)
		h.Send(CallbackResult{err: err})
		h.page(w, http.StatusBadRequest, MissingCodeMessage, h.MissingDelay)
		return
	}

	if !h.consume(code) {
		h.logger.Warn("authorization code already used", "error", shared.ErrCodeConsumed)
		h.Send(CallbackResult{err: shared.ErrCodeConsumed})
		h.page(w, http.StatusBadGateway, ExchangeFailMessage, h.FailureDelay)
		return
	}

	token, err := h.exchanger.Exchange(r.Context(), code)
	if err == nil && token == "" {
		err = fmt.Errorf("%w: empty access token", shared.ErrExchangeFailed)
	}
	if err != nil {
		h.logger.Error("callback exchange failed", "error", err)
		h.Send(CallbackResult{err: err})
		h.page(w, http.StatusBadGateway, ExchangeFailMessage, h.FailureDelay)
		return
	}

	h.tokens.Set(r.Context(), token)
	h.logger.Info("sign-in complete", "token", shared.MaskToken(token))
	h.Send(CallbackResult{Token: token})
	http.Redirect(w, r, h.home, http.StatusSeeOther)
}

// consume marks code as used and reports whether it was unused.
func (h *CallbackHandler) consume(code string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, used := h.consumed[code]; used {
		return false
	}
	h.consumed[code] = struct{}{}
	return true
}

// page writes a short status page that returns home after delay.
func (h *CallbackHandler) page(w http.ResponseWriter, status int, message string, delay time.Duration) {
	refresh := fmt.Sprintf("%s; url=%s", formatSeconds(delay), h.home)
	w.Header().Set("Refresh", refresh)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Processing Spotify sign-in</title>
    <meta http-equiv="refresh" content="%s">
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h2 { margin: 0 0 0.5rem 0; }
        p { color: #666; margin: 0; }
        .error { color: #d22; margin-top: 0.5rem; }
    </style>
</head>
<body>
    <div class="container">
        <h2>Processing Spotify sign-in…</h2>
        <p>You will be redirected shortly.</p>
        <p class="error">%s</p>
    </div>
</body>
</html>
`, refresh, message)
}

// formatSeconds renders d for a Refresh header: "1", "1.5".
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%g", d.Seconds())
}

// Send sends the callback result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result returns the result channel for receiving the first callback outcome.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}
