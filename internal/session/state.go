package session

import "github.com/desertthunder/isoca/internal/models"

// Status is the authentication status of a session.
type Status int

const (
	Unauthenticated Status = iota
	Authenticating
	Authenticated
	AuthFailed
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case AuthFailed:
		return "auth failed"
	default:
		return "unknown"
	}
}

// Notices shown alongside the track list.
const (
	NoticeReauthenticate = "re-authentication required"
	NoticeFetchFailed    = "fetch failed, retry later"
)

// State is the session status with its payload.
//
// Token is set only when Authenticated; Reason only when AuthFailed.
type State struct {
	Status Status
	Token  string
	Reason string
}

// Snapshot is what a session looks like at one point in time.
type Snapshot struct {
	State   State
	Tracks  models.TrackList
	Notice  string
	Loading bool
}

// SignedIn reports whether the snapshot holds an access token.
func (s Snapshot) SignedIn() bool {
	return s.State.Status == Authenticated && s.State.Token != ""
}
