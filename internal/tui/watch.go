package tui

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fileWatcher reports new contents of one file. The parent directory is
// watched because editors often replace a file instead of writing it.
type fileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	changes  chan string
	errs     chan error
	done     chan struct{}
	stopOnce sync.Once
}

func newFileWatcher(path string) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	fw := &fileWatcher{
		path:    abs,
		watcher: w,
		changes: make(chan string, 1),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (w *fileWatcher) loop() {
	defer close(w.changes)
	defer close(w.errs)
	var last string
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			data, err := os.ReadFile(w.path)
			if err != nil || string(data) == last {
				continue
			}
			last = string(data)
			w.send(last)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

// send keeps only the newest pending contents.
func (w *fileWatcher) send(content string) {
	for {
		select {
		case w.changes <- content:
			return
		case <-w.done:
			return
		default:
		}
		select {
		case <-w.changes:
		default:
		}
	}
}

func (w *fileWatcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
