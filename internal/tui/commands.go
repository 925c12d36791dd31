package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/loopviz/internal/config"
	"github.com/san-kum/loopviz/internal/render"
)

const minInterval = 50 * time.Millisecond

var commandHelp = []string{
	"help            show this list",
	"clear           clear the terminal",
	"run             run the editor contents",
	"pause | resume  pause or continue the animation",
	"reset           rewind the animation",
	"speed <ms>      set the step interval",
	"theme [name]    list themes or switch to one",
	"samples         list bundled samples",
	"load <sample>   replace the editor with a sample",
	"copy            copy the terminal to the clipboard",
	"save [path]     save the current frame as PNG",
}

// execute runs one terminal command line.
func (m *Model) execute(line string) tea.Cmd {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	m.sess.Print("$ " + strings.Join(fields, " "))
	defer m.refreshTerminal()

	switch name {
	case "help":
		m.sess.Print(commandHelp...)
	case "clear":
		m.sess.ClearOutput()
	case "run":
		return m.run()
	case "pause":
		m.gen++
		m.sess.Engine().Pause()
	case "resume":
		if m.sess.Engine().Running() {
			return nil
		}
		return m.togglePause()
	case "reset":
		m.reset()
	case "speed":
		if len(args) != 1 {
			m.sess.Print(fmt.Sprintf("interval %dms", m.interval.Milliseconds()))
			return nil
		}
		ms, err := strconv.Atoi(args[0])
		if err != nil || time.Duration(ms)*time.Millisecond < minInterval {
			m.sess.Print(fmt.Sprintf("speed: want milliseconds >= %d", minInterval.Milliseconds()))
			return nil
		}
		m.interval = time.Duration(ms) * time.Millisecond
	case "theme":
		if len(args) == 0 {
			m.sess.Print("themes: " + strings.Join(render.ThemeNames(), ", "))
			return nil
		}
		m.theme = render.GetTheme(args[0])
		if m.theme.Name != args[0] {
			m.sess.Print("unknown theme " + args[0] + ", using " + m.theme.Name)
		}
	case "samples":
		m.sess.Print("samples: " + strings.Join(config.ListSamples(), ", "))
	case "load":
		if len(args) != 1 {
			m.sess.Print("usage: load <sample>")
			return nil
		}
		src, ok := config.GetSample(args[0])
		if !ok {
			m.sess.Print("unknown sample " + args[0])
			return nil
		}
		m.editor.SetValue(src)
		return m.beginEdit(src)
	case "copy":
		m.copyOutput()
	case "save":
		path := ""
		if len(args) > 0 {
			path = args[0]
		}
		m.savePNG(path)
	default:
		m.sess.Print("unknown command " + name + " (try help)")
	}
	return nil
}
