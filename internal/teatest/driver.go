// Package teatest drives bubbletea models synchronously in tests.
//
// Update is called directly and every returned Cmd is run to completion
// before Send returns, so assertions see the settled view. Cmds that block
// past one animation frame are treated as timers and dropped, which keeps
// a spinning view from looping forever.
package teatest

import (
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxCmds bounds the Cmds run for one Send.
const maxCmds = 100

// frame is how long a Cmd may run before it counts as a timer.
const frame = 10 * time.Millisecond

// Driver holds the model under test and what it has done so far.
type Driver struct {
	t      testing.TB
	model  tea.Model
	render func(string) string

	// Quitting is set once a Cmd produces tea.QuitMsg. Later sends are
	// dropped the way a stopped tea.Program drops them.
	Quitting bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithSize delivers a WindowSizeMsg before anything else.
func WithSize(w, h int) Option {
	return func(d *Driver) {
		d.model, _ = d.model.Update(tea.WindowSizeMsg{Width: w, Height: h})
	}
}

// WithRender post-processes View output, typically to strip ANSI styling.
func WithRender(fn func(string) string) Option {
	return func(d *Driver) { d.render = fn }
}

// New wraps model. Init is not run until DrainInit.
func New(t testing.TB, model tea.Model, opts ...Option) *Driver {
	t.Helper()
	d := &Driver{t: t, model: model, render: func(s string) string { return s }}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Model returns the current model as M, failing the test on a mismatch.
func Model[M tea.Model](d *Driver) M {
	d.t.Helper()
	m, ok := d.model.(M)
	if !ok {
		d.t.Fatalf("teatest: model is %T", d.model)
	}
	return m
}

// DrainInit runs Init and everything it triggers.
func (d *Driver) DrainInit() {
	d.t.Helper()
	d.run(d.model.Init())
}

// Send delivers msg and runs the Cmds it triggers.
func (d *Driver) Send(msg tea.Msg) {
	d.t.Helper()
	if d.Quitting {
		return
	}
	var cmd tea.Cmd
	d.model, cmd = d.model.Update(msg)
	d.run(cmd)
}

// SendAll delivers msgs in order.
func (d *Driver) SendAll(msgs ...tea.Msg) {
	d.t.Helper()
	for _, msg := range msgs {
		d.Send(msg)
	}
}

// PressKey types a single rune.
func (d *Driver) PressKey(r rune) {
	d.t.Helper()
	d.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

// PressCtrlC sends Ctrl+C.
func (d *Driver) PressCtrlC() {
	d.t.Helper()
	d.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
}

// View renders the model through the render option.
func (d *Driver) View() string {
	return d.render(d.model.View())
}

// run works through cmd and its descendants breadth first.
func (d *Driver) run(cmd tea.Cmd) {
	d.t.Helper()
	queue := []tea.Cmd{cmd}
	for ran := 0; len(queue) > 0; ran++ {
		if ran == maxCmds {
			d.t.Logf("teatest: stopped after %d cmds", maxCmds)
			return
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil || d.Quitting {
			continue
		}

		switch msg := await(next).(type) {
		case nil, spinner.TickMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			d.Quitting = true
		default:
			var follow tea.Cmd
			d.model, follow = d.model.Update(msg)
			queue = append(queue, follow)
		}
	}
}

// await returns cmd's message, or nil when it takes longer than a frame.
func await(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(frame):
		return nil
	}
}
