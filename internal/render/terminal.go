package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/loopviz/internal/structure"
)

// Styles are the lipgloss styles derived from a Theme.
type Styles struct {
	Title    lipgloss.Style
	Kind     lipgloss.Style
	Cell     lipgloss.Style
	Current  lipgloss.Style
	Accessed lipgloss.Style
	Index    lipgloss.Style
	Value    lipgloss.Style
	Override lipgloss.Style
	Muted    lipgloss.Style
	Running  lipgloss.Style
	Paused   lipgloss.Style
	Error    lipgloss.Style
	Panel    lipgloss.Style
}

func NewStyles(th Theme) Styles {
	cell := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.Muted).
		Foreground(th.Text).
		Padding(0, 1)

	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(th.Title),
		Kind:  lipgloss.NewStyle().Foreground(th.Muted).Italic(true),
		Cell:  cell,
		Current: cell.
			BorderForeground(th.Current).
			Foreground(th.Current).
			Bold(true),
		Accessed: cell.BorderForeground(th.Accessed),
		Index:    lipgloss.NewStyle().Foreground(th.Muted),
		Value:    lipgloss.NewStyle().Foreground(th.Text),
		Override: lipgloss.NewStyle().Foreground(th.Override).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(th.Muted),
		Running:  lipgloss.NewStyle().Bold(true).Foreground(th.Running),
		Paused:   lipgloss.NewStyle().Bold(true).Foreground(th.Paused),
		Error:    lipgloss.NewStyle().Foreground(th.Error),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(th.Muted).
			Padding(0, 1),
	}
}

// Terminal draws every view of f, one structure per block.
func Terminal(f Frame, th Theme) string {
	st := NewStyles(th)
	if len(f.Views) == 0 {
		return st.Muted.Render("no structures")
	}
	blocks := make([]string, 0, len(f.Views))
	for _, v := range f.Views {
		blocks = append(blocks, st.view(v))
	}
	return strings.Join(blocks, "\n")
}

func (st Styles) view(v View) string {
	title := st.Title.Render(v.Name) + " " + st.Kind.Render(kindLabel(v))
	if len(v.Cells) == 0 {
		switch {
		case v.Kind != structure.KindScalar:
			return title + "\n" + st.Muted.Render("(empty)")
		case v.Overridden:
			return title + " = " + st.Override.Render(v.Value)
		}
		return title + " = " + st.Value.Render(v.Value)
	}

	cells := make([]string, len(v.Cells))
	for i, c := range v.Cells {
		cells[i] = st.cell(c)
	}
	row := lipgloss.JoinHorizontal(lipgloss.Top, cells...)
	if v.Overridden {
		title += " = " + st.Override.Render(v.Value)
	}
	return title + "\n" + row
}

func (st Styles) cell(c Cell) string {
	label := c.Label
	if c.Key != "" {
		label = c.Key + ": " + c.Label
	}
	box := st.Cell
	switch {
	case c.Current:
		box = st.Current
	case c.Accessed:
		box = st.Accessed
	}
	index := strconv.Itoa(c.Index)
	if c.Accessed {
		index += "*"
	}
	return lipgloss.JoinVertical(lipgloss.Center, box.Render(label), st.Index.Render(index))
}

func kindLabel(v View) string {
	if v.Target {
		return string(v.Kind) + ", loop target"
	}
	return string(v.Kind)
}

// Status is the one-line playback indicator.
func Status(f Frame, th Theme) string {
	st := NewStyles(th)
	switch {
	case f.Target == "":
		return st.Muted.Render("○ no loop")
	case f.Running:
		return st.Running.Render("▶ RUNNING") + " " + st.progress(f)
	case f.Done:
		return st.Running.Render("✓ DONE") + " " + st.progress(f)
	case f.Step < 0 && f.Len > 0:
		return st.Paused.Render("■ STOPPED") + " " + st.progress(f)
	}
	return st.Paused.Render("⏸ PAUSED") + " " + st.progress(f)
}

func (st Styles) progress(f Frame) string {
	step := f.Step + 1
	switch {
	case f.Done:
		step = f.Len
	case f.Step < 0:
		step = 0
	}
	label := fmt.Sprintf("%s %d/%d", f.Target, step, f.Len)
	if f.Iterator != "" {
		label = f.Iterator + " in " + label
	}
	ratio := 0.0
	if f.Len > 0 {
		ratio = float64(step) / float64(f.Len)
	}
	return st.Muted.Render(label) + " " + ProgressBar(ratio, 20, st)
}

// ProgressBar renders ratio in [0,1] as a bar of width cells.
func ProgressBar(ratio float64, width int, st Styles) string {
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return st.Running.Render(strings.Repeat("█", filled)) + st.Muted.Render(strings.Repeat("░", width-filled))
}
