package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/loopviz/internal/engine"
	"github.com/san-kum/loopviz/internal/render"
	"github.com/san-kum/loopviz/internal/session"
	"github.com/san-kum/loopviz/internal/transcript"
	"github.com/san-kum/loopviz/internal/tui"
)

func runHeadless(cmd *cobra.Command, args []string) error {
	switch format {
	case "text", "csv", "json":
	default:
		return fmt.Errorf("unknown format: %s (want text, csv or json)", format)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	code, name, _, err := readSource(args, cfg)
	if err != nil {
		return err
	}

	sess := session.New(newParser(cfg, logger), session.WithLogger(logger))
	eng := sess.Engine()
	th := render.GetTheme(cfg.Theme)
	lines := func(step int) []string { return sess.Program().Lines(step) }
	layout := func(snap engine.Snapshot) render.Frame {
		return render.Layout(eng.Registry(), snap, sess.Highlights())
	}

	rec := transcript.NewRecorder(lines)
	eng.AddObserver(rec)

	var pngErr error
	if pngDir != "" {
		if err := os.MkdirAll(pngDir, 0755); err != nil {
			return err
		}
		eng.AddObserver(engine.ObserverFunc(func(step int, snap engine.Snapshot) {
			if pngErr != nil {
				return
			}
			pngErr = render.SavePNG(layout(snap), th, filepath.Join(pngDir, fmt.Sprintf("step_%04d.png", step)))
		}))
	}

	delay := interval
	var liveView *tui.LiveRenderer
	if live {
		if !cmd.Flags().Changed("interval") {
			delay = cfg.Interval
		}
		liveView = tui.NewLiveRenderer(os.Stdout, name, th, layout, lines, frameRate)
		eng.AddObserver(liveView)
		liveView.Start()
		defer liveView.Stop()
	}

	ctx := cmd.Context()
	start := time.Now()
	sess.Run(ctx, code)
	prog := sess.Program()

	if eng.Running() {
		if delay <= 0 {
			for eng.Running() && ctx.Err() == nil {
				eng.Tick()
			}
		} else {
			player := engine.NewPlayer(eng, engine.WithInterval(delay))
			player.Play()
			select {
			case <-player.Done():
			case <-ctx.Done():
			}
			player.Close()
		}
	}
	if liveView != nil {
		liveView.Finish(eng.Snapshot())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if pngErr != nil {
		return fmt.Errorf("png export: %w", pngErr)
	}
	logger.Info("run complete", "name", name, "steps", rec.Len(), "elapsed", time.Since(start))

	meta := transcript.Meta{
		Name:      name,
		Timestamp: start,
		Target:    prog.Loop.Target,
		Iterator:  prog.Loop.Iterator,
		Steps:     rec.Len(),
		Source:    code,
	}

	switch format {
	case "csv":
		err = rec.WriteCSV(os.Stdout)
	case "json":
		err = rec.WriteJSON(os.Stdout, meta)
	default:
		if !live {
			for _, line := range sess.Output() {
				fmt.Println(line)
			}
		}
	}
	if err != nil {
		return err
	}

	if plot {
		for _, v := range rec.Variables() {
			if g := render.Plot(rec.Series(v), v); g != "" {
				fmt.Println()
				fmt.Println(g)
			}
		}
	}

	if save {
		store := transcript.NewStore(dataDir)
		if err := store.Init(); err != nil {
			return err
		}
		id, err := store.Save(meta, rec)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "run id: %s\n", id)
	}

	if prog.Error != "" {
		return fmt.Errorf("program failed: %s", prog.Error)
	}
	return nil
}
