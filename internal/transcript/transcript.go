// Package transcript records what a loop did step by step so headless runs
// can be exported and stored.
package transcript

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/structure"
)

// Step is one recorded loop step.
type Step struct {
	Step      int                        `json:"step"`
	Value     structure.Value            `json:"value,omitempty"`
	Overrides map[string]structure.Value `json:"overrides"`
	Lines     []string                   `json:"lines,omitempty"`
}

// Meta describes a recorded run.
type Meta struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target"`
	Iterator  string    `json:"iterator,omitempty"`
	Steps     int       `json:"steps"`
	Source    string    `json:"source,omitempty"`
}

// Export is the JSON document written by WriteJSON.
type Export struct {
	Meta
	Variables []string `json:"variables"`
	Records   []Step   `json:"records"`
}

// Recorder is an engine observer. It is safe to read while a player is
// ticking.
type Recorder struct {
	mu    sync.Mutex
	steps []Step
	lines func(step int) []string
}

// NewRecorder returns a recorder. lines, when non-nil, supplies the printed
// output of each step.
func NewRecorder(lines func(step int) []string) *Recorder {
	return &Recorder{lines: lines}
}

func (r *Recorder) OnStep(step int, snap engine.Snapshot) {
	s := Step{Step: step, Overrides: maps.Clone(snap.Overrides)}
	if s.Overrides == nil {
		s.Overrides = map[string]structure.Value{}
	}
	if snap.Iterator != "" {
		s.Value = snap.Overrides[snap.Iterator]
	}
	if r.lines != nil {
		s.Lines = slices.Clone(r.lines(step))
	}

	r.mu.Lock()
	r.steps = append(r.steps, s)
	r.mu.Unlock()
}

func (r *Recorder) Steps() []Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.steps)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.steps)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.steps = nil
	r.mu.Unlock()
}

// Variables lists every override name seen, sorted.
func (r *Recorder) Variables() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return variables(r.steps)
}

func variables(steps []Step) []string {
	seen := map[string]bool{}
	for _, s := range steps {
		for name := range s.Overrides {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Series returns the numeric values of name, one per step that had one.
func (r *Recorder) Series(name string) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []float64
	for _, s := range r.steps {
		if f, ok := structure.Number(s.Overrides[name]); ok {
			out = append(out, f)
		}
	}
	return out
}

// WriteCSV writes one row per step: the step index, every variable and the
// printed lines joined by " | ".
func (r *Recorder) WriteCSV(w io.Writer) error {
	steps := r.Steps()
	vars := variables(steps)

	cw := csv.NewWriter(w)
	header := append([]string{"step"}, vars...)
	header = append(header, "output")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range steps {
		row := []string{strconv.Itoa(s.Step)}
		for _, name := range vars {
			v, ok := s.Overrides[name]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, structure.Format(v))
		}
		row = append(row, strings.Join(s.Lines, " | "))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the recording with meta as an indented document.
func (r *Recorder) WriteJSON(w io.Writer, meta Meta) error {
	steps := r.Steps()
	if steps == nil {
		steps = []Step{}
	}
	meta.Steps = len(steps)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Export{Meta: meta, Variables: variables(steps), Records: steps})
}

// WriteText writes the printed output of every step, one line per line.
func (r *Recorder) WriteText(w io.Writer) error {
	for _, s := range r.Steps() {
		for _, line := range s.Lines {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}
