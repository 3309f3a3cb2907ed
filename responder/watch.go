package responder

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/pithecene-io/courier/log"
	"github.com/pithecene-io/courier/mailbox"
)

// watcher turns mailbox change notifications into scan triggers.
// The tick stays the correctness fallback: missed or coalesced events only
// delay a request to the next tick.
type watcher struct {
	fs      *fsnotify.Watcher
	prefix  string
	trigger chan struct{}
	logger  *log.Logger
}

func newWatcher(dir *mailbox.Dir, logger *log.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir.Root()); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &watcher{
		fs:      fw,
		prefix:  dir.Prefixes().Request,
		trigger: make(chan struct{}, 1),
		logger:  logger,
	}, nil
}

// run forwards request events until ctx is canceled, then closes the
// underlying watcher.
func (w *watcher) run(ctx context.Context) {
	defer func() { _ = w.fs.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				w.notify()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", map[string]any{"error": err.Error()})
			// Overflow may have dropped events
			w.notify()
		}
	}
}

func (w *watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Write) {
		return false
	}
	return strings.HasPrefix(filepath.Base(ev.Name), w.prefix)
}

// notify requests a scan without blocking; pending triggers coalesce.
func (w *watcher) notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}
