package progressui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"kosmokopy/internal/orchestrator"
)

func TestUpdateProgressMsgSetsLast(t *testing.T) {
	m := newModel()
	ev := orchestrator.ProgressEvent{FilesDone: 2, FilesTotal: 5, CurrentFile: "b.txt", BytesDone: 10, BytesTotal: 100}

	next, cmd := m.Update(progressMsg(ev))
	nm := next.(model)

	if nm.last != ev {
		t.Fatalf("got %+v, want %+v", nm.last, ev)
	}
	if cmd != nil {
		t.Fatalf("expected nil cmd, got %v", cmd)
	}
	if nm.finished {
		t.Fatal("progress message should not mark model finished")
	}
}

func TestUpdateDoneMsgFinishesAndQuits(t *testing.T) {
	m := newModel()
	next, cmd := m.Update(doneMsg{})
	nm := next.(model)

	if !nm.finished {
		t.Fatal("expected finished = true after doneMsg")
	}
	if cmd == nil {
		t.Fatal("expected a tea.Cmd (tea.Quit) after doneMsg")
	}
}

func TestUpdateKeyQuitsOnQOrCtrlC(t *testing.T) {
	m := newModel()
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatal("expected quit cmd for 'q'")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatal("expected quit cmd for ctrl+c")
	}
}

func TestViewEmptyWhenFinished(t *testing.T) {
	m := newModel()
	m.finished = true
	if v := m.View(); v != "" {
		t.Fatalf("expected empty view when finished, got %q", v)
	}
}

func TestViewShowsCountsAndBytes(t *testing.T) {
	m := newModel()
	m.last = orchestrator.ProgressEvent{FilesDone: 1, FilesTotal: 4, CurrentFile: "a.txt", BytesDone: 512, BytesTotal: 2048}

	v := m.View()
	if !strings.Contains(v, "1/4 files") {
		t.Errorf("view missing file counts: %q", v)
	}
	if !strings.Contains(v, "a.txt") {
		t.Errorf("view missing current file name: %q", v)
	}
	if !strings.Contains(v, "512 B/2.0 kB") {
		t.Errorf("view missing byte progress: %q", v)
	}
}

func TestViewOmitsBytesWhenTotalUnknown(t *testing.T) {
	m := newModel()
	m.last = orchestrator.ProgressEvent{FilesDone: 1, FilesTotal: 4, CurrentFile: "a.txt"}

	v := m.View()
	if strings.Contains(v, "B/") {
		t.Errorf("expected no byte progress when BytesTotal is 0: %q", v)
	}
}
