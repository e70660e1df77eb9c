package daemon

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/theirongolddev/cxburn/internal/source"
)

// WatchTree calls onChange whenever a session log under root is written,
// created, renamed or removed, and whenever a directory appears. New
// directories are watched as they are created. It blocks until ctx ends.
// A missing root is not an error; the caller's interval scans cover it.
func WatchTree(ctx context.Context, root string, onChange func()) error {
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		log.Printf("cxburn daemon level=info event=watch_skipped reason=missing_root root=%s", root)
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	if err := addTree(w, root); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !isHidden(fi.Name()) {
					if err := addTree(w, ev.Name); err != nil {
						log.Printf("cxburn daemon level=warn event=watch_add_failed path=%s err=%v", ev.Name, err)
					}
					onChange()
					continue
				}
			}
			if relevant(ev) {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("cxburn daemon level=warn event=watch_error err=%v", err)
		}
	}
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func relevant(ev fsnotify.Event) bool {
	if isHidden(filepath.Base(ev.Name)) || !strings.HasSuffix(ev.Name, source.SessionExt) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
