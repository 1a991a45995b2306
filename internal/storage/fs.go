package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/keeptrack/internal/model"
)

// DefaultRoot is the storage root used when none is configured, relative to
// the working directory.
const DefaultRoot = ".data"

// TempPrefix names the scratch files written next to a record before it is
// renamed into place.
const TempPrefix = ".keeptrack-tmp-"

// FS implements Storage with one directory per item under root.
//
//	<root>/<itemID>/item.json
//	<root>/<itemID>/<observationID>.json
type FS struct {
	root string // absolute path to the storage root
}

// NewFS creates a file-backed store rooted at root, creating the directory
// and any missing parents.
func NewFS(root string) (*FS, error) {
	if root == "" {
		root = DefaultRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute storage root.
func (f *FS) Root() string {
	return f.root
}

// itemDir resolves the directory of an item and rejects ids that would
// address anything other than a direct child of root.
func (f *FS) itemDir(itemID string) (string, error) {
	if itemID == "" || itemID == "." || itemID == ".." ||
		strings.ContainsAny(itemID, `/\`) || filepath.IsAbs(itemID) {
		return "", fmt.Errorf("storage: id escapes storage root: %q", itemID)
	}
	dir := filepath.Join(f.root, itemID)
	if filepath.Dir(dir) != f.root {
		return "", fmt.Errorf("storage: id escapes storage root: %q", itemID)
	}
	return dir, nil
}

func (f *FS) itemPath(itemID string) (string, error) {
	dir, err := f.itemDir(itemID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ItemFile), nil
}

// StoreItem creates the item directory if needed and overwrites item.json.
func (f *FS) StoreItem(item model.Item) error {
	dir, err := f.itemDir(item.ID)
	if err != nil {
		return err
	}
	data, err := EncodeItem(item)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return writeFile(filepath.Join(dir, ItemFile), data)
}

// ItemExists reports whether item.json is present as a regular file.
func (f *FS) ItemExists(id string) bool {
	p, err := f.itemPath(id)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// RetrieveItem reads and validates item.json for id.
func (f *FS) RetrieveItem(id string) (model.Item, error) {
	p, err := f.itemPath(id)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %w", ErrRetrieveFailed, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: read %s: %w", ErrRetrieveFailed, id, err)
	}
	item, err := decodeItem(data)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: decode %s: %w", ErrRetrieveFailed, id, err)
	}
	return item, nil
}

// Items retrieves the item of every subdirectory of root, skipping any that
// cannot be retrieved.
func (f *FS) Items() ([]model.Item, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list items: %w", err)
	}
	items := make([]model.Item, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		item, err := f.RetrieveItem(e.Name())
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// StoreObservation overwrites <itemID>/<obs.ID>.json. The item directory is
// not created.
func (f *FS) StoreObservation(itemID string, obs model.Observation) error {
	dir, err := f.itemDir(itemID)
	if err != nil {
		return err
	}
	name := obs.ID + ".json"
	if name == ItemFile || strings.ContainsAny(obs.ID, `/\`) || obs.ID == "" || obs.ID == "." || obs.ID == ".." ||
		strings.HasPrefix(obs.ID, TempPrefix) {
		return fmt.Errorf("storage: invalid observation id: %q", obs.ID)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("storage: item directory %s: %w", itemID, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: item directory %s: %w", itemID, os.ErrNotExist)
	}
	data, err := EncodeObservation(obs)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, name), data)
}

// Observations reads every file in the item directory other than item.json
// and in-flight temp files, and returns those that hold a valid observation.
func (f *FS) Observations(itemID string) ([]model.Observation, error) {
	dir, err := f.itemDir(itemID)
	if err != nil {
		return nil, fmt.Errorf("storage: list observations of %q: %w", itemID, os.ErrNotExist)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list observations of %s: %w", itemID, err)
	}
	out := make([]model.Observation, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == ItemFile || strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: read observation %s: %w", e.Name(), err)
		}
		obs, err := decodeObservation(data)
		if err != nil {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}

// writeFile atomically replaces path: tmp file → fsync → rename.
func writeFile(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
