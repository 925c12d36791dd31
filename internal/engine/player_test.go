package engine_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/structure"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               { f.stopped.Store(true) }

// fire delivers one tick if the player is still listening.
func (f *fakeTicker) fire() bool {
	select {
	case f.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (tf *tickerFactory) New(time.Duration) engine.Ticker {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time)}
	tf.tickers = append(tf.tickers, t)
	return t
}

func (tf *tickerFactory) Last() *fakeTicker {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.tickers[len(tf.tickers)-1]
}

func (tf *tickerFactory) Count() int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return len(tf.tickers)
}

type stepLog struct {
	mu    sync.Mutex
	steps []int
}

func (l *stepLog) record(step int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

func (l *stepLog) Steps() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.steps...)
}

var _ = Describe("Player", func() {
	var (
		factory *tickerFactory
		log     *stepLog
		player  *engine.Player
		reg     *structure.Registry
		loop    structure.Loop
	)

	BeforeEach(func() {
		factory = &tickerFactory{}
		log = &stepLog{}
		eng := engine.New(engine.WithStepFunc(log.record))
		player = engine.NewPlayer(eng, engine.WithTicker(factory.New), engine.WithInterval(time.Millisecond))
		reg = registry(array("arr", 10.0, 20.0, 30.0))
		loop = structure.Loop{HasLoop: true, Iterator: "x"}
	})

	AfterEach(func() {
		player.Close()
	})

	It("plays to completion and releases the ticker", func() {
		Expect(player.Load(reg, loop, engine.TriggerRun)).To(BeTrue())
		t := factory.Last()
		for range 4 {
			Expect(t.fire()).To(BeTrue())
		}

		Eventually(player.Done()).Should(BeClosed())
		Expect(log.Steps()).To(Equal([]int{0, 1, 2}))
		Expect(t.stopped.Load()).To(BeTrue())
		Expect(player.Snapshot().Running).To(BeFalse())
	})

	It("does not start on an edit trigger", func() {
		Expect(player.Load(reg, loop, engine.TriggerEdit)).To(BeFalse())
		Expect(factory.Count()).To(Equal(0))
	})

	It("applies no tick after Pause returns", func() {
		player.Load(reg, loop, engine.TriggerRun)
		t := factory.Last()
		Expect(t.fire()).To(BeTrue())
		Eventually(log.Steps).Should(HaveLen(1))

		player.Pause()
		Expect(t.stopped.Load()).To(BeTrue())
		t.fire()
		Consistently(log.Steps, 100*time.Millisecond).Should(HaveLen(1))
		Expect(player.Snapshot().Cursor).To(Equal(0))
	})

	It("resumes from the cursor with a new ticker", func() {
		player.Load(reg, loop, engine.TriggerRun)
		Expect(factory.Last().fire()).To(BeTrue())
		Eventually(log.Steps).Should(HaveLen(1))
		player.Pause()

		Expect(player.Resume()).To(BeTrue())
		Expect(factory.Count()).To(Equal(2))
		Expect(factory.Last().fire()).To(BeTrue())
		Eventually(log.Steps).Should(Equal([]int{0, 1}))
		Expect(player.Snapshot().Overrides).To(HaveKeyWithValue("x", 20.0))
	})

	It("rewinds on Reset and stops ticking", func() {
		player.Load(reg, loop, engine.TriggerRun)
		t := factory.Last()
		Expect(t.fire()).To(BeTrue())
		Eventually(log.Steps).Should(HaveLen(1))

		player.Reset()
		Expect(t.stopped.Load()).To(BeTrue())
		snap := player.Snapshot()
		Expect(snap.Cursor).To(Equal(-1))
		Expect(snap.Running).To(BeFalse())
	})

	It("drops the old generation on Load", func() {
		player.Load(reg, loop, engine.TriggerRun)
		old := factory.Last()

		player.Load(registry(array("arr", 7.0)), loop, engine.TriggerRun)
		Expect(old.stopped.Load()).To(BeTrue())
		old.fire()

		Expect(factory.Last().fire()).To(BeTrue())
		Eventually(log.Steps).Should(Equal([]int{0}))
		Expect(player.Snapshot().Overrides).To(HaveKeyWithValue("x", 7.0))
	})

	It("refuses to play after Close", func() {
		player.Close()
		Expect(player.Play()).To(BeFalse())
		Expect(player.Load(reg, loop, engine.TriggerRun)).To(BeFalse())
	})

	It("plays from the start on demand", func() {
		player.Load(reg, loop, engine.TriggerEdit)
		Expect(player.Play()).To(BeTrue())
		Expect(player.Play()).To(BeTrue())
		Expect(factory.Count()).To(Equal(1))
	})

	It("ticks on a real ticker", func() {
		p := engine.NewPlayer(engine.New(), engine.WithInterval(time.Millisecond))
		defer p.Close()
		Expect(p.Load(reg, loop, engine.TriggerRun)).To(BeTrue())
		Eventually(p.Done(), time.Second).Should(BeClosed())
	})
})
