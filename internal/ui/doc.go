// Package ui implements an interactive mirror monitor using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [MirrorListView] : Every known host in rank order with its latency and route (direct or relay)
//  2. [DetailView] : The probe result for the selected host
//
// The [Model] subscribes to the ranker when it is built, so rankings published by a background refresh
// (the ranker's own loop or the sweep scheduler) appear without user input. Rankings arrive through a
// one-slot channel and only the newest is kept.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
