// Package watcher turns filesystem changes under a storage root into record
// change notifications.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/keeptrack/internal/checksum"
	"github.com/starford/keeptrack/internal/storage"
)

// Change kinds passed to a Callback.
const (
	ItemCreated        = "item.created"
	ItemUpdated        = "item.updated"
	ObservationCreated = "observation.created"
	ObservationUpdated = "observation.updated"
)

// Callback is called once per record whose content changed on disk.
// observationID is empty for item changes.
type Callback func(kind, itemID, observationID string)

// record identifies the entity a file under the root belongs to.
type record struct {
	itemID        string
	observationID string
}

// classify maps an absolute path to the record it stores. Only
// <root>/<id>/item.json and <root>/<id>/<obs>.json qualify.
func classify(root, path string) (record, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return record{}, false
	}
	dir, name := filepath.Split(rel)
	dir = filepath.Clean(dir)
	if dir == "." || strings.ContainsRune(dir, filepath.Separator) || strings.HasPrefix(dir, "..") {
		return record{}, false
	}
	if strings.HasPrefix(name, storage.TempPrefix) || !strings.HasSuffix(name, ".json") {
		return record{}, false
	}
	if name == storage.ItemFile {
		return record{itemID: dir}, true
	}
	obs := strings.TrimSuffix(name, ".json")
	if obs == "" {
		return record{}, false
	}
	return record{itemID: dir, observationID: obs}, true
}

func (r record) kind(created bool) string {
	switch {
	case r.observationID == "" && created:
		return ItemCreated
	case r.observationID == "":
		return ItemUpdated
	case created:
		return ObservationCreated
	default:
		return ObservationUpdated
	}
}

// Watch starts an fsnotify watcher on root and its item directories and
// reports record changes until ctx is cancelled.
//
// Item directories created at runtime are added to the watch list and
// scanned for records written before the watch was in place. A file is
// reported as created the first time its content is seen and as updated when
// its checksum changes afterwards; repeated events with identical content
// are dropped.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb Callback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root, err = filepath.Abs(root)
	if err != nil {
		return err
	}

	// path -> checksum of the last content reported
	known := make(map[string]string)

	if err := w.Add(root); err != nil {
		return err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := w.Add(dir); err != nil {
			logger.Warn("watcher: add dir failed", slog.String("path", dir), slog.String("error", err.Error()))
			continue
		}
		scanDir(root, dir, known, nil)
	}

	logger.Info("watcher: started", slog.String("root", root))

	notify := func(path string) {
		rec, ok := classify(root, path)
		if !ok {
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			// Gone again or not a regular file.
			return
		}
		sum := checksum.Sum(data)
		prev, seen := known[path]
		if seen && prev == sum {
			return
		}
		known[path] = sum
		kind := rec.kind(!seen)
		logger.Debug("watcher: change", slog.String("kind", kind), slog.String("item_id", rec.itemID))
		if cb != nil {
			cb(kind, rec.itemID, rec.observationID)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			path := ev.Name

			if ev.Op&fsnotify.Create != 0 && filepath.Dir(path) == root {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					if addErr := w.Add(path); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", path),
							slog.String("error", addErr.Error()))
						continue
					}
					logger.Debug("watcher: watching new dir", slog.String("path", path))
					scanDir(root, path, known, notify)
					continue
				}
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				notify(path)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// A record moved away; forget it so a later write counts
				// as a creation. Directories drop every file below them.
				delete(known, path)
				prefix := path + string(filepath.Separator)
				for p := range known {
					if strings.HasPrefix(p, prefix) {
						delete(known, p)
					}
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// scanDir records the checksums of the record files already in dir. When
// notify is non-nil each file is passed to it instead.
func scanDir(root, dir string, known map[string]string, notify func(string)) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if notify != nil {
			notify(path)
			continue
		}
		if _, ok := classify(root, path); !ok {
			continue
		}
		if data, err := os.ReadFile(path); err == nil {
			known[path] = checksum.Sum(data)
		}
	}
}
