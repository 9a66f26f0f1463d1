// Package ui implements an interactive terminal client using bubbletea's Elm architecture.
//
// The [Model] follows a [session.Controller] through [session.Controller.Subscribe], so the screen
// changes whenever an exchange or fetch finishes or another process sharing the token store signs
// in or out. It shows one of:
//  1. [SignedOutView] : prompt to log in, with the reason of the last failure
//  2. [WaitingView] : an exchange is in flight
//  3. [TracksView] : the top tracks in a filterable list
//
// Logging in runs the browser flow supplied by the caller and reloads the session when it returns.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, l, x, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
