// Package tui is the interactive editor and visualizer.
//
// The screen has three panes: the source editor, the visualization of the
// current step, and a terminal showing printed output with a command line.
//
//	ctrl+r  run            ctrl+p  pause/resume
//	ctrl+x  reset          ctrl+t  next theme
//	ctrl+y  copy output    ctrl+s  save frame as PNG
//	tab     switch focus   ctrl+c  quit
package tui

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/logging"
	"github.com/san-kum/loopviz/internal/render"
	"github.com/san-kum/loopviz/internal/session"
	"github.com/san-kum/loopviz/internal/transcript"
)

// editSettle is how long typing must pause before the source is re-parsed.
const editSettle = 150 * time.Millisecond

type focus int

const (
	focusEditor focus = iota
	focusInput
)

type Options struct {
	Session  *session.Session
	Source   string
	Path     string
	Watch    bool
	Interval time.Duration
	Theme    string
	PNGDir   string
	Logger   *slog.Logger
}

type Model struct {
	ctx      context.Context
	sess     *session.Session
	rec      *transcript.Recorder
	logger   *slog.Logger
	interval time.Duration
	theme    render.Theme
	path     string
	pngDir   string

	editor   textarea.Model
	input    textinput.Model
	terminal viewport.Model
	focus    focus

	gen      uint64
	editSeq  uint64
	lastCode string
	saved    int

	changes <-chan string
	errs    <-chan error

	width  int
	height int
}

func New(ctx context.Context, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = engine.DefaultInterval
	}
	sess := opts.Session
	if sess == nil {
		panic("tui: Options.Session is required")
	}

	ed := textarea.New()
	ed.ShowLineNumbers = true
	ed.CharLimit = 0
	ed.MaxHeight = 0
	ed.Placeholder = "# write a program, then press ctrl+r"
	ed.SetValue(opts.Source)
	ed.Focus()

	in := textinput.New()
	in.Prompt = "$ "
	in.Placeholder = "type help"

	rec := transcript.NewRecorder(func(step int) []string { return sess.Program().Lines(step) })
	sess.Engine().AddObserver(rec)

	m := Model{
		ctx:      ctx,
		sess:     sess,
		rec:      rec,
		logger:   logger,
		interval: interval,
		theme:    render.GetTheme(opts.Theme),
		path:     opts.Path,
		pngDir:   opts.PNGDir,
		editor:   ed,
		input:    in,
		lastCode: opts.Source,
		terminal: viewport.New(80, 6),
		width:    100,
		height:   32,
	}
	m.resize()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.beginEdit(m.editor.Value())}
	if m.changes != nil {
		cmds = append(cmds, waitForFile(m.changes, m.errs))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m.handleTick(msg)

	case editSettledMsg:
		if msg.seq != m.editSeq {
			return m, nil
		}
		return m, m.beginEdit(m.editor.Value())

	case parsedMsg:
		if !m.sess.Apply(msg.req, msg.prog) {
			return m, nil
		}
		m.gen++
		if msg.req.Trigger == engine.TriggerRun {
			m.rec.Reset()
		}
		m.refreshTerminal()
		if m.sess.Engine().Running() {
			return m, tick(m.gen, m.interval)
		}
		return m, nil

	case fileChangedMsg:
		if msg.content != m.editor.Value() {
			m.editor.SetValue(msg.content)
			m.sess.Print("# reloaded " + m.path)
			m.refreshTerminal()
		}
		return m, tea.Batch(m.beginEdit(msg.content), waitForFile(m.changes, m.errs))

	case watchErrMsg:
		m.logger.Warn("watch failed", "path", m.path, "error", msg.err)
		return m, waitForFile(m.changes, m.errs)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return m, tea.Quit
	case "ctrl+r", "f5":
		return m, m.run()
	case "ctrl+p":
		return m, m.togglePause()
	case "ctrl+x":
		m.reset()
		return m, nil
	case "ctrl+t":
		m.nextTheme()
		return m, nil
	case "ctrl+y":
		m.copyOutput()
		return m, nil
	case "ctrl+s":
		m.savePNG("")
		return m, nil
	case "tab":
		m.toggleFocus()
		return m, nil
	case "esc":
		if m.focus == focusInput {
			m.toggleFocus()
		}
		return m, nil
	case "enter":
		if m.focus == focusInput {
			line := m.input.Value()
			m.input.SetValue("")
			return m, m.execute(line)
		}
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.terminal, cmd = m.terminal.Update(msg)
		return m, cmd
	}
	return m.updateFocused(msg)
}

func (m Model) updateFocused(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	m.editor, cmd = m.editor.Update(msg)
	if code := m.editor.Value(); code != m.lastCode {
		m.lastCode = code
		m.editSeq++
		return m, tea.Batch(cmd, settle(m.editSeq, editSettle))
	}
	return m, cmd
}

func (m Model) handleTick(msg tickMsg) (Model, tea.Cmd) {
	eng := m.sess.Engine()
	if msg.gen != m.gen || !eng.Running() {
		return m, nil
	}
	res := eng.Tick()
	for _, f := range res.Failures {
		m.logger.Debug("dependency not updated", "step", f.Step, "dependency", f.Dependency, "error", f.Wrapped)
	}
	m.refreshTerminal()
	if eng.Running() {
		return m, tick(m.gen, m.interval)
	}
	return m, nil
}

// beginEdit starts a passive re-parse of code.
func (m *Model) beginEdit(code string) tea.Cmd {
	m.lastCode = code
	req := m.sess.Begin(engine.TriggerEdit, code)
	return parse(m.ctx, m.sess, req)
}

// run starts an explicit run of the editor contents. The display log and
// highlights are cleared immediately; playback starts when the parse lands.
func (m *Model) run() tea.Cmd {
	m.gen++
	m.sess.Engine().Pause()
	req := m.sess.Begin(engine.TriggerRun, m.editor.Value())
	m.refreshTerminal()
	return parse(m.ctx, m.sess, req)
}

func (m *Model) togglePause() tea.Cmd {
	eng := m.sess.Engine()
	m.gen++
	if eng.Running() {
		eng.Pause()
		return nil
	}
	if eng.Resume() {
		return tick(m.gen, m.interval)
	}
	return nil
}

func (m *Model) reset() {
	m.gen++
	m.sess.Engine().Reset()
	m.rec.Reset()
}

func (m *Model) nextTheme() {
	names := render.ThemeNames()
	for i, n := range names {
		if n == m.theme.Name {
			m.theme = render.GetTheme(names[(i+1)%len(names)])
			return
		}
	}
	m.theme = render.DefaultTheme
}

func (m *Model) toggleFocus() {
	if m.focus == focusEditor {
		m.focus = focusInput
		m.editor.Blur()
		m.input.Focus()
		return
	}
	m.focus = focusEditor
	m.input.Blur()
	m.editor.Focus()
}

func (m *Model) refreshTerminal() {
	m.terminal.SetContent(joinLines(m.sess.Output()))
	m.terminal.GotoBottom()
}

func (m Model) frame() render.Frame {
	eng := m.sess.Engine()
	return render.Layout(eng.Registry(), eng.Snapshot(), m.sess.Highlights())
}

// Run starts the program and blocks until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	if opts.Watch && opts.Path != "" {
		w, err := newFileWatcher(opts.Path)
		if err != nil {
			return err
		}
		defer w.Close()
		m.changes, m.errs = w.changes, w.errs
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(os.Stdout))
	_, err := p.Run()
	return err
}
