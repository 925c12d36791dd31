// Package engine drives the step-by-step animation of a loop over one target
// structure.
//
// An [Engine] owns the step cursor, the play/pause/reset lifecycle and the
// override map holding the loop variable and every dependent variable at the
// current step. Each [Engine.Tick] advances the cursor by one element,
// recomputes the overrides through the formula evaluator and reports the
// step to the step sink and observers at most once per run.
//
// Engines are single-owner. Something outside the engine decides when to
// tick: the terminal UI schedules ticks as bubbletea messages, and [Player]
// drives an engine from a ticker for headless playback.
//
//	eng := engine.New(engine.WithStepFunc(func(step int) {
//		fmt.Println("step", step)
//	}))
//	eng.Load(reg, loop, engine.TriggerRun)
//	for !eng.Tick().Done {
//	}
package engine
