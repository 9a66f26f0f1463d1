package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/isoca/internal/services"
	"github.com/desertthunder/isoca/internal/session"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSession MsgKind = iota
	MsgSessionClosed
	MsgLoginDone
	MsgHealth
	MsgOpened
)

// sessionMsg is the constructor for [MsgSession]
func sessionMsg(snap session.Snapshot) Msg {
	return Msg{kind: MsgSession, data: snap}
}

// sessionClosedMsg is the constructor for [MsgSessionClosed]
func sessionClosedMsg() Msg {
	return Msg{kind: MsgSessionClosed}
}

// loginDoneMsg is the constructor for [MsgLoginDone]
func loginDoneMsg(err error) Msg {
	return Msg{kind: MsgLoginDone, data: err}
}

// healthMsg is the constructor for [MsgHealth]
func healthMsg(status *services.HealthStatus, err error) Msg {
	return Msg{
		kind: MsgHealth,
		data: struct {
			status *services.HealthStatus
			err    error
		}{status, err},
	}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(err error) Msg {
	return Msg{kind: MsgOpened, data: err}
}

func errData(data any) error {
	if err, ok := data.(error); ok {
		return err
	}
	return nil
}
