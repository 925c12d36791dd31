package engine

import (
	"sync"
	"time"

	"github.com/san-kum/loopviz/internal/structure"
)

// DefaultInterval is the cadence between steps.
const DefaultInterval = 800 * time.Millisecond

// Ticker is the part of time.Ticker a Player needs.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type PlayerOption func(*Player)

func WithInterval(d time.Duration) PlayerOption {
	return func(p *Player) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTicker replaces the ticker factory, for tests.
func WithTicker(fn func(time.Duration) Ticker) PlayerOption {
	return func(p *Player) { p.newTicker = fn }
}

// Player ticks an Engine on a fixed cadence from its own goroutine. All
// engine access goes through the player's lock, and every tick goroutine is
// bound to the generation it was started for: once Pause, Reset, Load or
// Close returns, no further tick reaches the engine.
//
// The engine's step sink and observers run under the lock and must not call
// back into the Player.
type Player struct {
	mu        sync.Mutex
	eng       *Engine
	interval  time.Duration
	newTicker func(time.Duration) Ticker

	gen    uint64
	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

func NewPlayer(eng *Engine, opts ...PlayerOption) *Player {
	p := &Player{
		eng:       eng,
		interval:  DefaultInterval,
		newTicker: NewTicker,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load installs a program. A run trigger starts playback when the program
// has a loop; the result reports whether it did.
func (p *Player) Load(reg *structure.Registry, loop structure.Loop, trigger Trigger) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.halt()
	p.eng.Load(reg, loop, trigger)
	if p.eng.Running() {
		p.launch()
		return true
	}
	return false
}

// Play starts playback from the first element.
func (p *Player) Play() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	if p.eng.Running() && p.ticker != nil {
		return true
	}
	if !p.eng.Start() {
		return false
	}
	p.launch()
	return true
}

// Resume continues after Pause without rewinding.
func (p *Player) Resume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.ticker != nil {
		return false
	}
	if !p.eng.Resume() {
		return false
	}
	p.launch()
	return true
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halt()
	p.eng.Pause()
}

func (p *Player) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halt()
	p.eng.Reset()
}

// Close stops playback for good.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halt()
	p.eng.Pause()
	p.closed = true
}

// Done is closed when the current playback completes naturally. Each
// Play, Resume or run-triggered Load that starts playback gets a fresh
// channel.
func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Snapshot reads the engine state under the player's lock.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eng.Snapshot()
}

// launch starts a tick goroutine for a new generation. Callers hold mu.
func (p *Player) launch() {
	p.gen++
	p.ticker = p.newTicker(p.interval)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(p.gen, p.ticker, p.stop, p.done)
}

// halt releases the ticker and retires the current generation. Callers hold
// mu.
func (p *Player) halt() {
	p.gen++
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
}

func (p *Player) loop(gen uint64, t Ticker, stop <-chan struct{}, done chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !p.step(gen, done) {
				return
			}
		}
	}
}

// step applies one tick if gen is still current. It reports whether the
// goroutine should keep running.
func (p *Player) step(gen uint64, done chan struct{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	if res := p.eng.Tick(); res.Done || !p.eng.Running() {
		p.halt()
		close(done)
		return false
	}
	return true
}
