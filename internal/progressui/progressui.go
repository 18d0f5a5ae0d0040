// Package progressui is the optional interactive presentation layer
// over internal/orchestrator: a bubbletea program rendering a progress
// bar and a running status line, fed by the orchestrator's progress
// events. It is not part of the transfer CORE (spec §1) — it is a
// consumer sitting beside the headless JSON path described in spec §6.
//
// Grounded on internal/tui/tui.go's tea.Program + p.Send bridging
// pattern (a goroutine forwards external events into the Bubble Tea
// update loop via Program.Send) adapted from a menu+log view to a
// progress bar.
package progressui

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"kosmokopy/internal/orchestrator"
	"kosmokopy/internal/xfer"
)

var (
	fileStyle = lipgloss.NewStyle().Faint(true)
	doneStyle = lipgloss.NewStyle().Bold(true)
)

type progressMsg orchestrator.ProgressEvent

type doneMsg struct{}

type model struct {
	bar      progress.Model
	start    time.Time
	last     orchestrator.ProgressEvent
	finished bool
}

func newModel() model {
	return model{
		bar:   progress.New(progress.WithDefaultGradient()),
		start: time.Now(),
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.last = orchestrator.ProgressEvent(msg)
		return m, nil
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if m.finished {
		return ""
	}
	pct := 0.0
	if m.last.FilesTotal > 0 {
		pct = float64(m.last.FilesDone) / float64(m.last.FilesTotal)
	}
	counts := fmt.Sprintf("%d/%d files", m.last.FilesDone, m.last.FilesTotal)
	if m.last.BytesTotal > 0 {
		counts += fmt.Sprintf("  %s/%s", humanize.Bytes(uint64(m.last.BytesDone)), humanize.Bytes(uint64(m.last.BytesTotal)))
	}
	lastFile := m.last.CurrentFile
	if m.last.LastFileDuration > 0 {
		lastFile = fmt.Sprintf("%s (%s)", lastFile, m.last.LastFileDuration.Round(time.Millisecond))
	}
	elapsed := time.Since(m.start).Round(100 * time.Millisecond)
	return fmt.Sprintf(
		"%s\n%s  %s  elapsed %s\n",
		m.bar.ViewAs(pct),
		doneStyle.Render(counts),
		fileStyle.Render(lastFile),
		elapsed,
	)
}

// Run drives a transfer under the interactive progress display. Two
// goroutines run concurrently, coordinated by an errgroup: the
// orchestrator goroutine (eng.Run) and the UI-consumer goroutine
// (p.Run, the Bubble Tea render loop) — eng.Bus.Subscribe bridges
// progress events from the former into the latter via p.Send. The
// summary and run error come directly from the orchestrator goroutine,
// not from the Bubble Tea model, so a user-initiated early quit still
// surfaces the real (Cancelled) summary instead of a zero value.
func Run(ctx context.Context, eng *orchestrator.Engine, req xfer.TransferRequest, cancel *atomic.Bool) (xfer.Summary, error) {
	p := tea.NewProgram(newModel())

	eng.Bus.Subscribe(orchestrator.ProgressTopic, func(ev orchestrator.ProgressEvent) {
		p.Send(progressMsg(ev))
	})

	var summary xfer.Summary
	var runErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, runErr = eng.Run(gctx, req, cancel)
		p.Send(doneMsg{})
		return nil
	})
	g.Go(func() error {
		m, err := p.Run()
		if fm, ok := m.(model); ok && !fm.finished && cancel != nil {
			// User quit before the transfer finished on its own; set the
			// cooperative flag now so eng.Run notices on its next
			// between-files check instead of g.Wait() blocking forever.
			cancel.Store(true)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return xfer.Summary{Status: xfer.StatusError}, fmt.Errorf("progressui: %w", err)
	}
	return summary, runErr
}
