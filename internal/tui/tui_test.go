// internal/tui/tui_test.go
package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestUpdateProgress(t *testing.T) {
	t.Parallel()

	m := newModel("evidence curve")
	updated, _ := m.Update(progressMsg{done: 3, total: 10, label: "k=4"})
	got := updated.(model)

	if got.done != 3 || got.total != 10 || got.label != "k=4" {
		t.Fatalf("progress not applied: %+v", got)
	}

	view := got.View()
	for _, want := range []string{"evidence curve", "3/10", "k=4"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestUpdateFinishQuits(t *testing.T) {
	t.Parallel()

	m := newModel("sweep")
	updated, cmd := m.Update(finishMsg{})
	if cmd == nil {
		t.Fatal("finish did not produce a command")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Fatalf("finish command = %v, want quit", msg)
	}
	if !updated.(model).finished {
		t.Fatal("model not marked finished")
	}
}

func TestViewZeroTotal(t *testing.T) {
	t.Parallel()

	m := newModel("sweep")
	if view := m.View(); !strings.Contains(view, "0/0") {
		t.Fatalf("zero-progress view malformed:\n%s", view)
	}
}
