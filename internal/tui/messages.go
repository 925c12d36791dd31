package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/loopviz/internal/analyzer"
	"github.com/san-kum/loopviz/internal/session"
)

// tickMsg advances the animation. gen is the playback generation it was
// scheduled under; ticks from an older generation are dropped.
type tickMsg struct {
	gen uint64
}

// parsedMsg carries a finished analyzer run back to Update.
type parsedMsg struct {
	req  session.Request
	prog *analyzer.Program
}

// editSettledMsg fires once typing has paused.
type editSettledMsg struct {
	seq uint64
}

// fileChangedMsg carries new contents of the watched file.
type fileChangedMsg struct {
	content string
}

type watchErrMsg struct {
	err error
}

func tick(gen uint64, interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func settle(seq uint64, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(time.Time) tea.Msg { return editSettledMsg{seq: seq} })
}

// parse runs the analyzer off the update loop.
func parse(ctx context.Context, s *session.Session, req session.Request) tea.Cmd {
	return func() tea.Msg {
		return parsedMsg{req: req, prog: s.Parse(ctx, req)}
	}
}

func waitForFile(ch <-chan string, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case content, ok := <-ch:
			if !ok {
				return nil
			}
			return fileChangedMsg{content: content}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return watchErrMsg{err: err}
		}
	}
}
