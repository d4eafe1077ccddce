// Package tui holds the interactive terminal surfaces: the agenda
// view over the canonical event cache and the device-flow modal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/theakshaypant/calbridge/internal/core"
	"github.com/theakshaypant/calbridge/internal/util"
)

// KeyMap defines the agenda keybindings.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Open    key.Binding
	Refresh key.Binding
	NextDay key.Binding
	PrevDay key.Binding
	Today   key.Binding
	Quit    key.Binding
	Help    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓", "down")),
	Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open in browser")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	NextDay: key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next day")),
	PrevDay: key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev day")),
	Today:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Snapshot returns the current cache contents; the agenda re-reads it
// after every refresh.
type Snapshot func() []core.Event

// Refresh is the manual-refresh hook, rate-limited by its owner.
type Refresh func(ctx context.Context) error

// OpenURL opens an event link in the browser.
type OpenURL func(url string) error

type refreshDoneMsg struct{ err error }

// Model is the Bubble Tea model for the agenda view.
type Model struct {
	snapshot Snapshot
	refresh  Refresh
	openURL  OpenURL

	all         []core.Event
	events      []core.Event // events shown for currentDate
	selectedIdx int
	currentDate time.Time

	width, height int
	keys          KeyMap
	detailView    viewport.Model
	viewportReady bool
	refreshing    bool
	status        string
	showHelp      bool
}

// NewModel builds the agenda over a cache snapshot source.
func NewModel(snapshot Snapshot, refresh Refresh, openURL OpenURL) Model {
	m := Model{
		snapshot:    snapshot,
		refresh:     refresh,
		openURL:     openURL,
		keys:        DefaultKeyMap,
		currentDate: time.Now(),
	}
	m.reload()
	return m
}

func (m Model) Init() tea.Cmd { return nil }

// reload re-reads the snapshot and filters to the current day.
func (m *Model) reload() {
	m.all = m.snapshot()
	dayStart := time.Date(m.currentDate.Year(), m.currentDate.Month(), m.currentDate.Day(), 0, 0, 0, 0, m.currentDate.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	m.events = m.events[:0]
	for _, e := range m.all {
		if e.Start.Before(dayEnd) && e.End.After(dayStart) {
			m.events = append(m.events, e)
		}
	}
	if m.selectedIdx >= len(m.events) {
		m.selectedIdx = len(m.events) - 1
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
	m.syncDetail()
}

func (m *Model) shiftDay(days int) {
	m.currentDate = m.currentDate.AddDate(0, 0, days)
	m.selectedIdx = 0
	m.reload()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case refreshDoneMsg:
		m.refreshing = false
		if msg.err != nil {
			m.status = "refresh failed: " + msg.err.Error()
		} else {
			m.status = ""
		}
		m.reload()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, m.keys.Up):
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.syncDetail()
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.selectedIdx < len(m.events)-1 {
				m.selectedIdx++
				m.syncDetail()
			}
			return m, nil
		case key.Matches(msg, m.keys.NextDay):
			m.shiftDay(1)
			return m, nil
		case key.Matches(msg, m.keys.PrevDay):
			m.shiftDay(-1)
			return m, nil
		case key.Matches(msg, m.keys.Today):
			m.currentDate = time.Now()
			m.selectedIdx = 0
			m.reload()
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			if m.refreshing || m.refresh == nil {
				return m, nil
			}
			m.refreshing = true
			m.status = "refreshing…"
			refresh := m.refresh
			return m, func() tea.Msg {
				return refreshDoneMsg{err: refresh(context.Background())}
			}
		case key.Matches(msg, m.keys.Open):
			if m.openURL != nil && m.selectedIdx < len(m.events) {
				url := m.events[m.selectedIdx].URL
				if url == "" {
					return m, nil
				}
				// Providers hand us the link verbatim; refuse to hand a
				// non-web URL to the browser opener.
				if err := core.ValidateURL(url); err != nil {
					m.status = "event link is not a valid URL"
					return m, nil
				}
				_ = m.openURL(url)
			}
			return m, nil
		}
	}
	return m, nil
}

func (m *Model) layout() {
	detailWidth := m.width/2 - 4
	if detailWidth < 20 {
		detailWidth = 20
	}
	contentHeight := m.height - 6
	if contentHeight < 5 {
		contentHeight = 5
	}
	if !m.viewportReady {
		m.detailView = viewport.New(detailWidth, contentHeight)
		m.viewportReady = true
	} else {
		m.detailView.Width = detailWidth
		m.detailView.Height = contentHeight
	}
	m.syncDetail()
}

func (m *Model) syncDetail() {
	if !m.viewportReady {
		return
	}
	if m.selectedIdx >= len(m.events) {
		m.detailView.SetContent("")
		return
	}
	m.detailView.SetContent(m.renderDetail(m.events[m.selectedIdx]))
	m.detailView.GotoTop()
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading…"
	}

	header := HeaderStyle.Render(fmt.Sprintf("📅 %s", m.currentDate.Format("Monday, Jan 2 2006")))

	listWidth := m.width/2 - 4
	if listWidth < 24 {
		listWidth = 24
	}
	list := m.renderList(listWidth)
	detail := DetailPanelStyle.Render(m.detailView.View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, ListPanelStyle.Render(list), detail)

	help := m.renderHelp()
	parts := []string{header, body, help}
	if m.status != "" {
		parts = append(parts, HelpStyle.Render(m.status))
	}
	return AppStyle.Render(strings.Join(parts, "\n"))
}

func (m Model) renderList(width int) string {
	if len(m.events) == 0 {
		return NormalItemStyle.Render("no events on this day")
	}
	now := time.Now()
	var b strings.Builder
	for i, e := range m.events {
		when := "all day"
		if !e.IsAllDay {
			when = e.Start.Local().Format("3:04 PM")
		}
		past := e.End.Before(now)
		timeStyle := TimeStyle
		if past {
			timeStyle = PastTimeStyle
		}
		line := fmt.Sprintf("%s %s",
			timeStyle.Render(when),
			util.TruncateText(e.Title, width-14))

		switch {
		case i == m.selectedIdx && past:
			line = SelectedPastStyle.Render(ansi.Strip(line))
		case i == m.selectedIdx:
			line = SelectedItemStyle.Render(ansi.Strip(line))
		case past:
			line = PastItemStyle.Render(ansi.Strip(line))
		}
		b.WriteString(line)
		if i < len(m.events)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m Model) renderDetail(e core.Event) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(e.Title) + "\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(LabelStyle.Render(label) + ValueStyle.Render(value) + "\n")
	}

	row("Calendar", e.Calendar.Name)
	row("Provider", e.Provider.DisplayName())
	if e.IsAllDay {
		if e.StartDate == e.EndDate {
			row("When", e.StartDate+" (all day)")
		} else {
			row("When", fmt.Sprintf("%s – %s (all day)", e.StartDate, e.EndDate))
		}
	} else {
		row("When", fmt.Sprintf("%s – %s",
			e.Start.Local().Format("Mon, Jan 2 3:04 PM"),
			e.End.Local().Format("3:04 PM")))
	}
	row("Location", e.Location)
	if e.URL != "" {
		b.WriteString(LabelStyle.Render("Link") + LinkStyle.Render(util.MakeHyperlink(e.URL, "open in calendar")) + "\n")
	}
	if e.InProgress(time.Now()) {
		b.WriteString("\n" + InProgressStyle.Render("IN PROGRESS") + "\n")
	}
	if e.Description != "" {
		b.WriteString("\n" + ValueStyle.Render(e.Description))
	}
	return b.String()
}

func (m Model) renderHelp() string {
	if !m.showHelp {
		return HelpStyle.Render("↑/↓ select · ←/→ day · r refresh · ? help · q quit")
	}
	keys := []struct{ k, desc string }{
		{"↑/↓", "select event"},
		{"←/→", "previous/next day"},
		{"t", "jump to today"},
		{"r", "manual refresh"},
		{"enter", "open event in browser"},
		{"?", "toggle help"},
		{"q", "quit"},
	}
	var b strings.Builder
	for _, kd := range keys {
		b.WriteString(HelpKeyStyle.Render(kd.k) + " " + HelpStyle.Render(kd.desc) + "\n")
	}
	return b.String()
}
