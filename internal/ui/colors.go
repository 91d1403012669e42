package ui

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/polychrome/internal/mirrors"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Latencies at or below fastLatency render as ok, above slowLatency as an error.
const (
	fastLatency = 250 * time.Millisecond
	slowLatency = time.Second
)

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

// latency picks the style a probe result is drawn with.
func (p *Palette) latency(rec mirrors.HostRecord) lipgloss.Style {
	switch {
	case !rec.Reachable() || rec.Latency > slowLatency:
		return p.err
	case rec.Latency > fastLatency:
		return p.warn
	default:
		return p.ok
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}
