package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/render"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer redraws the whole screen on every loop step. It is an engine
// observer for headless runs that still want to watch the animation.
type LiveRenderer struct {
	w         io.Writer
	name      string
	theme     render.Theme
	layout    func(engine.Snapshot) render.Frame
	lines     func(step int) []string
	frameRate int
	lastFrame time.Time
	printed   []string
}

// NewLiveRenderer draws frames built by layout. frameRate caps redraws per
// second; 0 draws every step.
func NewLiveRenderer(w io.Writer, name string, th render.Theme, layout func(engine.Snapshot) render.Frame, lines func(int) []string, frameRate int) *LiveRenderer {
	return &LiveRenderer{
		w:         w,
		name:      name,
		theme:     th,
		layout:    layout,
		lines:     lines,
		frameRate: frameRate,
	}
}

func (r *LiveRenderer) OnStep(step int, snap engine.Snapshot) {
	if r.lines != nil {
		r.printed = append(r.printed, r.lines(step)...)
	}
	if r.frameRate > 0 && time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()
	r.draw(snap)
}

// Finish draws the final state regardless of the frame rate.
func (r *LiveRenderer) Finish(snap engine.Snapshot) {
	r.draw(snap)
}

func (r *LiveRenderer) draw(snap engine.Snapshot) {
	f := r.layout(snap)
	st := render.NewStyles(r.theme)

	var b strings.Builder
	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "  %s  %s\n\n", st.Title.Render(r.name), render.Status(f, r.theme))
	b.WriteString(render.Terminal(f, r.theme))
	b.WriteString("\n\n")

	tail := r.printed
	if len(tail) > terminalHeight {
		tail = tail[len(tail)-terminalHeight:]
	}
	for _, line := range tail {
		b.WriteString("  " + line + "\n")
	}
	io.WriteString(r.w, b.String())
}

func (r *LiveRenderer) Start() { io.WriteString(r.w, hideCursor) }
func (r *LiveRenderer) Stop()  { io.WriteString(r.w, showCursor) }
