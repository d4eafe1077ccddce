// Package notify is the user-notice collaborator: fire-and-forget
// toasts for authorization and sync outcomes. It never blocks and
// never carries diagnostic detail; that goes to the logs.
package notify

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Notifier shows a short user-visible message.
type Notifier interface {
	Notify(message string)
}

var toastStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F9FAFB")).
	Background(lipgloss.Color("#374151")).
	Padding(0, 1)

// Terminal prints styled toasts to a writer (stderr by default).
type Terminal struct {
	Out io.Writer
}

// NewTerminal returns a stderr-backed notifier.
func NewTerminal() *Terminal {
	return &Terminal{Out: os.Stderr}
}

func (t *Terminal) Notify(message string) {
	out := t.Out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintln(out, toastStyle.Render(message))
}

// Discard drops every notice. Used in tests and non-interactive runs.
type Discard struct{}

func (Discard) Notify(string) {}

// Recorder captures notices for assertions in tests.
type Recorder struct {
	Messages []string
}

func (r *Recorder) Notify(message string) {
	r.Messages = append(r.Messages, message)
}
