package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/loopviz/internal/render"
)

const (
	minEditorWidth = 30
	terminalHeight = 8
	sparkWidth     = 24
)

func (m *Model) resize() {
	left := max(m.width*2/5, minEditorWidth)
	m.editor.SetWidth(left)
	m.editor.SetHeight(max(m.height-terminalHeight-6, 5))
	m.terminal.Width = max(m.width-4, 20)
	m.terminal.Height = terminalHeight - 2
	m.input.Width = max(m.width-8, 10)
}

func (m Model) View() string {
	st := render.NewStyles(m.theme)
	f := m.frame()

	header := st.Title.Render("loopviz") + "  " + render.Status(f, m.theme)
	if mk := m.sess.Marker(); !mk.IsZero() {
		header += st.Muted.Render(fmt.Sprintf("  run #%d", mk.Seq))
	}

	left := st.Panel.Render(m.editor.View())

	var right strings.Builder
	right.WriteString(render.Terminal(f, m.theme))
	if spark := m.spark(); spark != "" {
		right.WriteString("\n\n" + spark)
	}
	rightWidth := max(m.width-lipgloss.Width(left)-2, 20)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		lipgloss.NewStyle().Width(rightWidth).PaddingLeft(2).Render(right.String()),
	)

	term := st.Panel.Width(max(m.width-2, 20)).Render(m.terminal.View() + "\n" + m.input.View())

	help := st.Muted.Render("ctrl+r run  ctrl+p pause  ctrl+x reset  ctrl+t theme  ctrl+y copy  ctrl+s png  tab focus  ctrl+c quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, body, term, help)
}

// spark draws the history of the first numeric loop variable.
func (m Model) spark() string {
	for _, name := range m.rec.Variables() {
		vals := m.rec.Series(name)
		if len(vals) < 2 {
			continue
		}
		st := render.NewStyles(m.theme)
		return st.Muted.Render(name+" ") + render.Sparkline(vals, sparkWidth, m.theme)
	}
	return ""
}

func (m *Model) copyOutput() {
	out := m.sess.Output()
	if err := clipboard.WriteAll(joinLines(out)); err != nil {
		m.logger.Warn("copy failed", "error", err)
		m.sess.Print("# copy failed: " + err.Error())
	} else {
		m.sess.Print(fmt.Sprintf("# copied %d lines", len(out)))
	}
	m.refreshTerminal()
}

// savePNG writes the current frame. An empty path picks a timestamped name
// in the PNG directory.
func (m *Model) savePNG(path string) {
	if path == "" {
		m.saved++
		name := fmt.Sprintf("loopviz_%s_%d.png", time.Now().Format("20060102_150405"), m.saved)
		path = filepath.Join(m.pngDir, name)
	}
	if err := render.SavePNG(m.frame(), m.theme, path); err != nil {
		m.logger.Warn("png export failed", "path", path, "error", err)
		m.sess.Print("# png export failed: " + err.Error())
	} else {
		m.sess.Print("# saved " + path)
	}
	m.refreshTerminal()
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
