package engine_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/formula"
	"github.com/san-kum/loopviz/internal/structure"
)

func array(name string, elems ...structure.Value) structure.Descriptor {
	return structure.Descriptor{Name: name, Kind: structure.KindArray, Elements: elems}
}

func registry(descs ...structure.Descriptor) *structure.Registry {
	reg, err := structure.NewRegistry(descs...)
	Expect(err).NotTo(HaveOccurred())
	return reg
}

func tickN(eng *engine.Engine, n int) []engine.StepResult {
	out := make([]engine.StepResult, n)
	for i := range out {
		out[i] = eng.Tick()
	}
	return out
}

var _ = Describe("Engine", func() {
	var (
		eng   *engine.Engine
		steps []int
	)

	BeforeEach(func() {
		steps = nil
		eng = engine.New(engine.WithStepFunc(func(step int) {
			steps = append(steps, step)
		}))
	})

	Describe("playback", func() {
		It("notifies each step once and stops after N+1 ticks", func() {
			reg := registry(array("arr", 1.0, 2.0, 3.0, 4.0))
			eng.Load(reg, structure.Loop{HasLoop: true, Iterator: "x"}, engine.TriggerRun)
			Expect(eng.Running()).To(BeTrue())

			results := tickN(eng, 5)
			Expect(steps).To(Equal([]int{0, 1, 2, 3}))
			Expect(results[4].Done).To(BeTrue())
			Expect(eng.Running()).To(BeFalse())
			Expect(eng.Snapshot().Current()).To(Equal(-1))
		})

		It("computes the iterator and dependencies at every step", func() {
			reg := registry(array("arr", 10.0, 20.0, 30.0))
			loop := structure.Loop{
				HasLoop:      true,
				Iterator:     "x",
				Dependencies: []structure.Dependency{{Name: "y", Formula: "x*2", HasFormula: true}},
			}
			eng.Load(reg, loop, engine.TriggerRun)

			want := [][2]float64{{10, 20}, {20, 40}, {30, 60}}
			for i, w := range want {
				res := eng.Tick()
				Expect(res.Step).To(Equal(i))
				Expect(res.Failures).To(BeEmpty())
				snap := eng.Snapshot()
				Expect(snap.Current()).To(Equal(i))
				Expect(snap.Overrides).To(HaveKeyWithValue("x", w[0]))
				Expect(snap.Overrides).To(HaveKeyWithValue("y", w[1]))
			}

			res := eng.Tick()
			Expect(res.Done).To(BeTrue())
			Expect(eng.Snapshot().Overrides).To(BeEmpty())
			Expect(eng.Running()).To(BeFalse())
		})

		It("does nothing while not running", func() {
			eng.Load(registry(array("arr", 1.0)), structure.Loop{HasLoop: true}, engine.TriggerEdit)
			res := eng.Tick()
			Expect(res.Step).To(Equal(-1))
			Expect(res.Done).To(BeFalse())
			Expect(steps).To(BeEmpty())
		})
	})

	Describe("at-most-once delivery", func() {
		It("does not re-notify steps after a restart without reset", func() {
			eng.Load(registry(array("arr", 1.0, 2.0, 3.0)), structure.Loop{HasLoop: true}, engine.TriggerRun)
			tickN(eng, 2)
			eng.Pause()
			Expect(eng.Start()).To(BeTrue())
			Expect(eng.Snapshot().Cursor).To(Equal(-1))

			tickN(eng, 3)
			Expect(steps).To(Equal([]int{0, 1, 2}))
		})

		It("does not re-notify steps after pause and resume", func() {
			eng.Load(registry(array("arr", 1.0, 2.0, 3.0)), structure.Loop{HasLoop: true}, engine.TriggerRun)
			tickN(eng, 1)
			eng.Pause()
			Expect(eng.Resume()).To(BeTrue())
			tickN(eng, 2)
			Expect(steps).To(Equal([]int{0, 1, 2}))
		})

		It("notifies again after reset", func() {
			eng.Load(registry(array("arr", 1.0, 2.0)), structure.Loop{HasLoop: true}, engine.TriggerRun)
			tickN(eng, 3)
			eng.Reset()
			eng.Start()
			tickN(eng, 3)
			Expect(steps).To(Equal([]int{0, 1, 0, 1}))
		})

		It("keeps notification state per engine", func() {
			other := engine.New()
			reg := registry(array("arr", 1.0))
			other.Load(reg, structure.Loop{HasLoop: true}, engine.TriggerRun)
			other.Tick()

			eng.Load(reg, structure.Loop{HasLoop: true}, engine.TriggerRun)
			eng.Tick()
			Expect(steps).To(Equal([]int{0}))
		})
	})

	Describe("Reset", func() {
		It("is idempotent", func() {
			eng.Load(registry(array("arr", 1.0, 2.0)), structure.Loop{HasLoop: true, Iterator: "x"}, engine.TriggerRun)
			eng.Tick()

			eng.Reset()
			once := eng.Snapshot()
			eng.Reset()
			twice := eng.Snapshot()

			Expect(twice).To(Equal(once))
			Expect(twice.Cursor).To(Equal(-1))
			Expect(twice.Overrides).To(BeEmpty())
			Expect(twice.Running).To(BeFalse())
		})
	})

	Describe("Pause", func() {
		It("preserves cursor and overrides", func() {
			eng.Load(registry(array("arr", 5.0, 6.0)), structure.Loop{HasLoop: true, Iterator: "x"}, engine.TriggerRun)
			eng.Tick()
			eng.Pause()

			snap := eng.Snapshot()
			Expect(snap.Running).To(BeFalse())
			Expect(snap.Cursor).To(Equal(0))
			Expect(snap.Overrides).To(HaveKeyWithValue("x", 5.0))
		})
	})

	Describe("dependencies", func() {
		It("leaves the override unchanged when a formula fails", func() {
			loop := structure.Loop{
				HasLoop:  true,
				Iterator: "x",
				Dependencies: []structure.Dependency{
					{Name: "bad", Formula: "missing + 1", HasFormula: true},
				},
			}
			eng.Load(registry(array("arr", 1.0)), loop, engine.TriggerRun)

			res := eng.Tick()
			Expect(res.Failures).To(HaveLen(1))
			Expect(res.Failures[0].Dependency).To(Equal("bad"))
			Expect(errors.Is(res.Failures[0], formula.ErrUndefined)).To(BeTrue())
			Expect(eng.Snapshot().Overrides).NotTo(HaveKey("bad"))
			Expect(steps).To(Equal([]int{0}))
		})

		It("keeps the previous value across a failing step", func() {
			loop := structure.Loop{
				HasLoop:  true,
				Iterator: "x",
				Dependencies: []structure.Dependency{
					{Name: "r", Formula: "10 / (x - 20)", HasFormula: true},
				},
			}
			eng.Load(registry(array("arr", 10.0, 20.0, 30.0)), loop, engine.TriggerRun)

			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("r", -1.0))

			res := eng.Tick()
			Expect(res.Failures).To(HaveLen(1))
			Expect(errors.Is(res.Failures[0], formula.ErrDivisionByZero)).To(BeTrue())
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("r", -1.0))

			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("r", 1.0))
		})

		It("reports formulas that do not compile at every step", func() {
			loop := structure.Loop{
				HasLoop:      true,
				Iterator:     "x",
				Dependencies: []structure.Dependency{{Name: "y", Formula: "x +", HasFormula: true}},
			}
			eng.Load(registry(array("arr", 1.0, 2.0)), loop, engine.TriggerRun)
			for range 2 {
				res := eng.Tick()
				Expect(res.Failures).To(HaveLen(1))
				Expect(errors.Is(res.Failures[0], formula.ErrSyntax)).To(BeTrue())
			}
		})

		It("evaluates in declaration order against fresh values", func() {
			loop := structure.Loop{
				HasLoop:  true,
				Iterator: "x",
				Dependencies: []structure.Dependency{
					{Name: "y", Formula: "x + 1", HasFormula: true},
					{Name: "z", Formula: "y * 10", HasFormula: true},
				},
			}
			eng.Load(registry(array("arr", 1.0, 2.0)), loop, engine.TriggerRun)
			eng.Tick()
			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("z", 30.0))
		})

		It("mirrors the iterator when there is no formula", func() {
			loop := structure.Loop{
				HasLoop:      true,
				Iterator:     "x",
				Dependencies: []structure.Dependency{{Name: "copy"}},
			}
			eng.Load(registry(array("arr", "a", "b")), loop, engine.TriggerRun)
			eng.Tick()
			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("copy", "b"))
		})

		It("skips dependencies without an iterator", func() {
			loop := structure.Loop{
				HasLoop:      true,
				Dependencies: []structure.Dependency{{Name: "y", Formula: "1 + 1", HasFormula: true}},
			}
			eng.Load(registry(array("arr", 1.0)), loop, engine.TriggerRun)
			res := eng.Tick()
			Expect(res.Step).To(Equal(0))
			Expect(eng.Snapshot().Overrides).To(BeEmpty())
			Expect(steps).To(Equal([]int{0}))
		})

		It("exposes the step index and structure data to formulas", func() {
			loop := structure.Loop{
				HasLoop:  true,
				Iterator: "x",
				Dependencies: []structure.Dependency{
					{Name: "w", Formula: "weights[_index] * x", HasFormula: true},
				},
			}
			reg := registry(array("arr", 2.0, 3.0), array("weights", 10.0, 100.0))
			eng.Load(reg, loop, engine.TriggerRun)
			eng.Tick()
			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("w", 300.0))
		})

		It("lets overrides shadow structures of the same name", func() {
			loop := structure.Loop{
				HasLoop:  true,
				Iterator: "x",
				Dependencies: []structure.Dependency{
					{Name: "total", Formula: "total + x", HasFormula: true},
				},
			}
			reg := registry(
				array("arr", 1.0, 2.0, 3.0),
				structure.Descriptor{Name: "total", Kind: structure.KindScalar, Scalar: 0.0},
			)
			eng.Load(reg, loop, engine.TriggerRun)
			tickN(eng, 3)
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("total", 6.0))
		})
	})

	Describe("target selection", func() {
		It("uses the named target", func() {
			reg := registry(array("a", 1.0), array("b", 7.0, 8.0))
			eng.Load(reg, structure.Loop{HasLoop: true, Target: "b", Iterator: "x"}, engine.TriggerRun)
			eng.Tick()
			Expect(eng.Snapshot().Target).To(Equal("b"))
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("x", 7.0))
		})

		It("falls back to the first structure", func() {
			reg := registry(array("a", 1.0), array("b", 7.0))
			eng.Load(reg, structure.Loop{HasLoop: true, Target: "nope"}, engine.TriggerRun)
			Expect(eng.Snapshot().Target).To(Equal("a"))
		})

		It("iterates dictionary keys", func() {
			dict := structure.Descriptor{
				Name:    "d",
				Kind:    structure.KindDictionary,
				Entries: []structure.Entry{{Key: "k1", Value: 1.0}, {Key: "k2", Value: 2.0}},
			}
			loop := structure.Loop{
				HasLoop:      true,
				Iterator:     "k",
				Dependencies: []structure.Dependency{{Name: "v", Formula: "d[k]", HasFormula: true}},
			}
			eng.Load(registry(dict), loop, engine.TriggerRun)
			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("k", "k1"))
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("v", 1.0))
		})

		It("is inert with an empty registry", func() {
			eng.Load(structure.Empty(), structure.Loop{HasLoop: true}, engine.TriggerRun)
			Expect(eng.HasTarget()).To(BeFalse())
			Expect(eng.Start()).To(BeFalse())
			Expect(eng.Tick().Step).To(Equal(-1))
			Expect(steps).To(BeEmpty())
		})
	})

	Describe("Load", func() {
		It("does not start on an edit trigger", func() {
			eng.Load(registry(array("arr", 1.0)), structure.Loop{HasLoop: true}, engine.TriggerEdit)
			Expect(eng.Running()).To(BeFalse())
		})

		It("does not start a run without a loop", func() {
			eng.Load(registry(array("arr", 1.0)), structure.Loop{}, engine.TriggerRun)
			Expect(eng.Running()).To(BeFalse())
		})

		It("discards state from the previous program", func() {
			loop := structure.Loop{HasLoop: true, Iterator: "x"}
			eng.Load(registry(array("arr", 1.0, 2.0)), loop, engine.TriggerRun)
			eng.Tick()

			eng.Load(registry(array("arr", 9.0)), loop, engine.TriggerEdit)
			snap := eng.Snapshot()
			Expect(snap.Running).To(BeFalse())
			Expect(snap.Cursor).To(Equal(-1))
			Expect(snap.Overrides).To(BeEmpty())

			eng.Start()
			eng.Tick()
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("x", 9.0))
			Expect(steps).To(Equal([]int{0, 0}))
		})
	})

	Describe("observers", func() {
		It("receive a snapshot once per step", func() {
			var seen []engine.Snapshot
			eng.AddObserver(engine.ObserverFunc(func(step int, snap engine.Snapshot) {
				seen = append(seen, snap)
			}))
			eng.Load(registry(array("arr", 3.0, 4.0)), structure.Loop{HasLoop: true, Iterator: "x"}, engine.TriggerRun)
			tickN(eng, 2)
			eng.Pause()
			eng.Start()
			tickN(eng, 2)

			Expect(seen).To(HaveLen(2))
			Expect(seen[1].Current()).To(Equal(1))
			Expect(seen[1].Overrides).To(HaveKeyWithValue("x", 4.0))
		})

		It("cannot mutate engine state through a snapshot", func() {
			eng.Load(registry(array("arr", 3.0)), structure.Loop{HasLoop: true, Iterator: "x"}, engine.TriggerRun)
			eng.Tick()
			snap := eng.Snapshot()
			snap.Overrides["x"] = 99.0
			Expect(eng.Snapshot().Overrides).To(HaveKeyWithValue("x", 3.0))
		})
	})
})
