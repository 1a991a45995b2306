package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/keeptrack/internal/model"
	"github.com/starford/keeptrack/internal/testutil"
)

const (
	itemID = "0196a7b0-6f1e-7c3a-9d52-3b8f0e4a1c22"
	obsID  = "0196a7b1-2c4d-7e8f-a012-3456789abcde"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, itemID, observationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := kind + ":" + itemID
	if observationID != "" {
		e += "/" + observationID
	}
	r.events = append(r.events, e)
}

func (r *recorder) has(want string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == want {
			return true
		}
	}
	return false
}

func (r *recorder) count(want string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == want {
			n++
		}
	}
	return n
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, root string) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rec := &recorder{}
	go func() {
		defer close(done)
		if err := Watch(ctx, root, logger, rec.record); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestClassify(t *testing.T) {
	root := filepath.FromSlash("/data")
	tests := []struct {
		path string
		want record
		ok   bool
	}{
		{"/data/" + itemID + "/item.json", record{itemID: itemID}, true},
		{"/data/" + itemID + "/" + obsID + ".json", record{itemID: itemID, observationID: obsID}, true},
		{"/data/item.json", record{}, false},
		{"/data/" + itemID + "/.keeptrack-tmp-123", record{}, false},
		{"/data/" + itemID + "/notes.txt", record{}, false},
		{"/data/" + itemID + "/sub/x.json", record{}, false},
		{"/elsewhere/" + itemID + "/item.json", record{}, false},
	}
	for _, tt := range tests {
		got, ok := classify(root, filepath.FromSlash(tt.path))
		if ok != tt.ok || got != tt.want {
			t.Errorf("classify(%q) = %+v, %v; want %+v, %v", tt.path, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWatcher_NewItemAndObservation(t *testing.T) {
	store := testutil.TestStore(t)
	rec := startWatch(t, store.Root())

	if err := store.StoreItem(model.Item{ID: itemID, Name: "Bike"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ItemCreated + ":" + itemID)
	}, "expected item.created callback")

	// Let the watcher pick up the new item directory.
	time.Sleep(100 * time.Millisecond)

	start := time.Date(2025, 5, 6, 8, 0, 0, 0, time.UTC)
	if err := store.StoreObservation(itemID, model.Observation{ID: obsID, Start: start, End: start}); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ObservationCreated + ":" + itemID + "/" + obsID)
	}, "expected observation.created callback")
}

func TestWatcher_ExistingItemUpdated(t *testing.T) {
	store := testutil.TestStore(t)
	if err := store.StoreItem(model.Item{ID: itemID, Name: "Bike"}); err != nil {
		t.Fatal(err)
	}
	rec := startWatch(t, store.Root())

	// Same content again: nothing to report.
	if err := store.StoreItem(model.Item{ID: itemID, Name: "Bike"}); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreItem(model.Item{ID: itemID, Name: "Bicycle"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ItemUpdated + ":" + itemID)
	}, "expected item.updated callback")

	if rec.has(ItemCreated + ":" + itemID) {
		t.Error("pre-existing item reported as created")
	}
	if n := rec.count(ItemUpdated + ":" + itemID); n != 1 {
		t.Errorf("item.updated reported %d times, want 1", n)
	}
}

func TestWatcher_IgnoresStrayFiles(t *testing.T) {
	store := testutil.TestStore(t)
	rec := startWatch(t, store.Root())

	_ = os.WriteFile(filepath.Join(store.Root(), "README.json"), []byte("{}"), 0o644)
	if err := store.StoreItem(model.Item{ID: itemID, Name: "x"}); err != nil {
		t.Fatal(err)
	}
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has(ItemCreated + ":" + itemID)
	}, "expected item.created callback")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, e := range rec.events {
		if e != ItemCreated+":"+itemID {
			t.Errorf("unexpected event %q", e)
		}
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent"), logger, nil)
	if err == nil {
		t.Fatal("expected error for missing root")
	}
}
