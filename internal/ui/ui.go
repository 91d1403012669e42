package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/polychrome/internal/mirrors"
	"github.com/desertthunder/polychrome/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MirrorListView ViewState = iota
	DetailView
)

const (
	defaultWidth  = 80
	defaultHeight = 24
)

// Mirrors is the part of [mirrors.Ranker] the TUI watches.
type Mirrors interface {
	RankedHosts() []mirrors.HostRecord
	LastRanked() time.Time
	Refresh(ctx context.Context) ([]mirrors.HostRecord, error)
	Subscribe(fn func([]mirrors.HostRecord)) (cancel func())
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	mirrors     Mirrors
	logger      *log.Logger
	updates     chan []mirrors.HostRecord
	unsubscribe func()
	width       int
	height      int
	hostList    list.Model
	records     []mirrors.HostRecord
	selected    *mirrors.HostRecord
	rankedAt    time.Time
	refreshing  bool
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a TUI model subscribed to m. Call [Model.Close] once the program exits.
func NewModel(ctx context.Context, m Mirrors, logger *log.Logger) *Model {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	model := &Model{
		ctx:     ctx,
		view:    MirrorListView,
		mirrors: m,
		logger:  shared.WithLogger(logger, "component", "ui"),
		updates: make(chan []mirrors.HostRecord, 1),
		width:   defaultWidth,
		height:  defaultHeight,
		help:    help.New(),
		keys:    newKeyMap(),
	}

	model.hostList = list.New(nil, list.NewDefaultDelegate(), model.width-4, model.height-8)
	model.hostList.Title = "Mirrors"
	model.hostList.SetShowHelp(false)
	model.setRecords(m.RankedHosts())
	model.unsubscribe = m.Subscribe(model.publish)
	return model
}

// publish keeps only the newest ranking when the TUI falls behind.
func (m *Model) publish(records []mirrors.HostRecord) {
	for {
		select {
		case m.updates <- records:
			return
		default:
		}
		select {
		case <-m.updates:
		default:
		}
	}
}

// Close removes the ranker subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Init waits for published rankings and ranks immediately when nothing has been ranked yet.
func (m *Model) Init() tea.Cmd {
	if m.rankedAt.IsZero() {
		m.refreshing = true
		return tea.Batch(m.waitForRanking(), m.refresh())
	}
	return m.waitForRanking()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.hostList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case MirrorListView:
			return m.handleListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgRankingPublished:
			m.setRecords(msg.data.([]mirrors.HostRecord))
			return m, m.waitForRanking()
		case MsgRefreshDone:
			res := msg.data.(refreshResult)
			m.refreshing = false
			m.err = res.err
			if res.err != nil {
				m.logger.Warn("refresh failed", "error", res.err)
				return m, nil
			}
			m.setRecords(res.records)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.hostList, cmd = m.hostList.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MirrorListView:
		return m.renderList()
	case DetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.hostList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.hostList, cmd = m.hostList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.startRefresh()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.hostList.SelectedItem().(hostItem); ok {
			rec := item.record
			m.selected = &rec
			m.view = DetailView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.hostList, cmd = m.hostList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = MirrorListView
		m.selected = nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.startRefresh()
	}
	return m, nil
}

func (m *Model) setRecords(records []mirrors.HostRecord) {
	m.records = records
	m.rankedAt = m.mirrors.LastRanked()
	m.hostList.SetItems(hostItems(records))

	if m.selected == nil {
		return
	}
	for _, rec := range records {
		if rec.URL == m.selected.URL {
			m.selected = &rec
			return
		}
	}
}

func (m *Model) startRefresh() tea.Cmd {
	if m.refreshing {
		return nil
	}
	m.refreshing = true
	m.err = nil
	return m.refresh()
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		records, err := m.mirrors.Refresh(m.ctx)
		return refreshDoneMsg(records, err)
	}
}

func (m *Model) waitForRanking() tea.Cmd {
	return func() tea.Msg {
		select {
		case records := <-m.updates:
			return rankingPublishedMsg(records)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) status() string {
	usable := 0
	for _, rec := range m.records {
		if rec.Reachable() {
			usable++
		}
	}

	var b strings.Builder
	switch {
	case m.rankedAt.IsZero():
		b.WriteString(styles.help.Render("not ranked yet"))
	case usable == 0:
		b.WriteString(styles.err.Render(fmt.Sprintf("0 of %d hosts usable", len(m.records))))
	default:
		b.WriteString(styles.ok.Render(fmt.Sprintf("%d of %d hosts usable", usable, len(m.records))))
		b.WriteString(styles.help.Render(" • ranked " + m.rankedAt.Format(time.TimeOnly)))
	}

	if m.refreshing {
		b.WriteString(styles.warn.Render(" • refreshing..."))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	return b.String()
}

func (m *Model) renderList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", m.hostList.View(), m.status(), helpView)
}

func (m *Model) renderDetail() string {
	if m.selected == nil {
		return ""
	}
	rec := *m.selected

	title := styles.title.Render(rec.URL)
	latency := styles.latency(rec).Render(shared.FormatLatency(rec.Latency, rec.Reachable()))
	info := fmt.Sprintf("Latency: %s\nRoute:   %s\nUsable:  %t", latency, route(rec), rec.Reachable())

	helpKeys := []key.Binding{m.keys.back, m.keys.refresh, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, info, m.status(), helpView)
}
