package tui

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DeviceCodePrompt is the device-flow modal: it shows the verification
// URL and user code while the flow polls in the background. Esc or
// ctrl+c cancels the authorization.
type DeviceCodePrompt struct {
	mu        sync.Mutex
	prog      *tea.Program
	cancelled chan struct{}
	done      chan struct{}
}

// NewDeviceCodePrompt returns an unopened prompt.
func NewDeviceCodePrompt() *DeviceCodePrompt {
	return &DeviceCodePrompt{
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Open shows the modal. It returns immediately; the modal runs on its
// own goroutine until Close or user dismissal.
func (p *DeviceCodePrompt) Open(verificationURL, userCode string) {
	m := deviceCodeModel{
		url:     verificationURL,
		code:    userCode,
		spin:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		onAbort: p.signalCancelled,
	}
	prog := tea.NewProgram(m)

	p.mu.Lock()
	p.prog = prog
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		if _, err := prog.Run(); err != nil {
			p.signalCancelled()
		}
	}()
}

// Close dismisses the modal without cancelling the flow. Safe to call
// whether or not Open ran.
func (p *DeviceCodePrompt) Close() {
	p.mu.Lock()
	prog := p.prog
	p.mu.Unlock()
	if prog == nil {
		return
	}
	prog.Quit()
	<-p.done
}

// Cancelled is closed when the user dismisses the modal.
func (p *DeviceCodePrompt) Cancelled() <-chan struct{} { return p.cancelled }

func (p *DeviceCodePrompt) signalCancelled() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.cancelled:
	default:
		close(p.cancelled)
	}
}

var (
	deviceBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(1, 3)
	deviceCodeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			Padding(0, 1)
)

type deviceCodeModel struct {
	url     string
	code    string
	spin    spinner.Model
	onAbort func()
}

func (m deviceCodeModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m deviceCodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c", "q":
			if m.onAbort != nil {
				m.onAbort()
			}
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m deviceCodeModel) View() string {
	body := fmt.Sprintf(
		"%s Waiting for authorization…\n\nVisit  %s\nEnter  %s\n\n%s",
		m.spin.View(),
		LinkStyle.Render(m.url),
		deviceCodeStyle.Render(m.code),
		HelpStyle.Render("esc to cancel"),
	)
	return AppStyle.Render(deviceBoxStyle.Render(body))
}
