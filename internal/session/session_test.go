package session_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/loopviz/internal/analyzer"
	"github.com/san-kum/loopviz/internal/config"
	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/session"
)

const loopSource = `arr = [10, 20, 30]
print("start")
for x in arr:
    y = x * 2
    print(x, y)
`

type stubParser struct {
	resp  *analyzer.Response
	err   error
	calls int
}

func (p *stubParser) Parse(ctx context.Context, code string) (*analyzer.Response, error) {
	p.calls++
	return p.resp, p.err
}

func drain(s *session.Session) {
	for i := 0; i < 100; i++ {
		if res := s.Engine().Tick(); res.Done || !s.Engine().Running() {
			return
		}
	}
}

var _ = Describe("Session", func() {
	var (
		ctx context.Context
		s   *session.Session
		now time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		s = session.New(analyzer.New(), session.WithClock(func() time.Time {
			now = now.Add(time.Second)
			return now
		}))
	})

	Describe("Run", func() {
		It("prints top-level output then one step's lines per tick", func() {
			m := s.Run(ctx, loopSource)
			Expect(m.Seq).To(Equal(uint64(1)))
			Expect(s.Engine().Running()).To(BeTrue())
			Expect(s.Output()).To(Equal([]string{"start"}))

			s.Engine().Tick()
			Expect(s.Output()).To(Equal([]string{"start", "10 20"}))

			drain(s)
			Expect(s.Output()).To(Equal([]string{"start", "10 20", "20 40", "30 60"}))
			Expect(s.Engine().Running()).To(BeFalse())
		})

		It("clears the display log on every run", func() {
			s.Run(ctx, loopSource)
			drain(s)
			s.Print("$ help")

			s.Run(ctx, loopSource)
			Expect(s.Output()).To(Equal([]string{"start"}))
		})

		It("issues a new marker for identical source", func() {
			first := s.Run(ctx, loopSource)
			second := s.Run(ctx, loopSource)
			Expect(second.Seq).To(BeNumerically(">", first.Seq))
			Expect(second.At.After(first.At)).To(BeTrue())
			Expect(s.Marker()).To(Equal(second))
		})

		It("builds highlights from index operations", func() {
			s.Run(ctx, "arr = [1, 2, 3]\nv = arr[2]\n")
			Expect(s.Highlights().Has("arr", 2)).To(BeTrue())
			Expect(s.Highlights().Has("arr", 0)).To(BeFalse())
		})

		It("shows a syntax error in the log", func() {
			s.Run(ctx, "arr = [1, 2\n")
			Expect(s.Output()).To(HaveLen(1))
			Expect(s.Output()[0]).To(HavePrefix("Syntax Error"))
			Expect(s.Engine().Running()).To(BeFalse())
		})

		It("does not start a program without a loop", func() {
			s.Run(ctx, "x = 1\n")
			Expect(s.Engine().Running()).To(BeFalse())
			Expect(s.Program().Registry.Names()).To(Equal([]string{"x"}))
		})
	})

	Describe("Edit", func() {
		It("re-parses without starting playback", func() {
			s.Edit(ctx, loopSource)
			Expect(s.Engine().Running()).To(BeFalse())
			Expect(s.Program().Loop.HasLoop).To(BeTrue())
			Expect(s.Source()).To(Equal(loopSource))
			Expect(s.Marker().IsZero()).To(BeTrue())
		})

		It("clears highlights but keeps the display log", func() {
			s.Run(ctx, "arr = [1, 2, 3]\nprint(arr[0])\n")
			Expect(s.Highlights().Len()).To(Equal(1))

			s.Edit(ctx, "arr = [1, 2, 3]\nprint(arr[0])\n# edited\n")
			Expect(s.Highlights().Len()).To(Equal(0))
			Expect(s.Output()).To(Equal([]string{"1"}))
		})

		It("resets a running animation", func() {
			s.Run(ctx, loopSource)
			s.Engine().Tick()
			s.Edit(ctx, loopSource)
			Expect(s.Engine().Running()).To(BeFalse())
			Expect(s.Engine().Snapshot().Overrides).To(BeEmpty())
		})
	})

	Describe("Apply", func() {
		It("drops results older than the last applied request", func() {
			run := s.Begin(engine.TriggerRun, loopSource)
			edit := s.Begin(engine.TriggerEdit, "x = 1\n")

			Expect(s.Apply(edit, s.Parse(ctx, edit))).To(BeTrue())
			Expect(s.Apply(run, s.Parse(ctx, run))).To(BeFalse())

			Expect(s.Engine().Running()).To(BeFalse())
			Expect(s.Program().Registry.Names()).To(Equal([]string{"x"}))
		})

		It("applies a run after an older edit", func() {
			edit := s.Begin(engine.TriggerEdit, "x = 1\n")
			run := s.Begin(engine.TriggerRun, loopSource)

			Expect(s.Apply(run, s.Parse(ctx, run))).To(BeTrue())
			Expect(s.Apply(edit, s.Parse(ctx, edit))).To(BeFalse())
			Expect(s.Engine().Running()).To(BeTrue())
		})
	})

	Describe("bundled samples", func() {
		for _, name := range config.ListSamples() {
			It("runs "+name+" without errors", func() {
				src, _ := config.GetSample(name)
				s.Run(ctx, src)
				Expect(s.Program().Error).To(BeEmpty())
				Expect(s.Program().Skipped).To(BeEmpty())
				Expect(s.Program().Registry.Len()).To(BeNumerically(">", 0))
				drain(s)
				for _, line := range s.Output() {
					Expect(line).NotTo(ContainSubstring("Error"))
				}
			})
		}
	})

	Context("with a failing analyzer", func() {
		It("degrades to an empty program", func() {
			stub := &stubParser{err: errors.New("connection refused")}
			s = session.New(stub)

			s.Run(ctx, loopSource)
			Expect(stub.calls).To(Equal(1))
			Expect(s.Program().Registry.Len()).To(Equal(0))
			Expect(s.Engine().Running()).To(BeFalse())
			Expect(s.Output()).To(BeEmpty())
		})
	})

	Context("with a canned response", func() {
		It("skips malformed structures and keeps the rest", func() {
			formula := "x + 1"
			stub := &stubParser{resp: &analyzer.Response{
				Structures: []analyzer.Structure{
					{Name: "arr", Type: analyzer.TypeArray, Data: []any{1.0, 2.0}},
					{Name: "t", Type: "tree", Data: []any{}},
					{Name: "x", Type: analyzer.TypeVariable, Data: "?"},
				},
				HasLoop:          true,
				Target:           "arr",
				Iterator:         "x",
				LoopDependencies: []analyzer.Dependency{{Name: "y", Formula: &formula}},
			}}
			s = session.New(stub)

			s.Run(ctx, "anything")
			Expect(s.Program().Registry.Names()).To(Equal([]string{"arr", "x"}))
			Expect(s.Program().Skipped).To(HaveLen(1))

			s.Engine().Tick()
			v, ok := s.Engine().Snapshot().Override("y")
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(2.0))
		})
	})
})
