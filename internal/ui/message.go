package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/polychrome/internal/mirrors"
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
	MsgRankingPublished MsgKind = iota
	MsgRefreshDone
)

type refreshResult struct {
	records []mirrors.HostRecord
	err     error
}

// rankingPublishedMsg is the constructor for [MsgRankingPublished]
func rankingPublishedMsg(records []mirrors.HostRecord) Msg {
	return Msg{kind: MsgRankingPublished, data: records}
}

// refreshDoneMsg is the constructor for [MsgRefreshDone]
func refreshDoneMsg(records []mirrors.HostRecord, err error) Msg {
	return Msg{kind: MsgRefreshDone, data: refreshResult{records, err}}
}
