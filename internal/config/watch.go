package config

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TuningStore hands out the current tuning snapshot and swaps it atomically
// when the tuning file changes. Readers always see a complete, validated set.
type TuningStore struct {
	mu     sync.RWMutex
	tuning Tuning
}

// NewTuningStore creates a store seeded with the given tuning.
func NewTuningStore(tuning Tuning) *TuningStore {
	return &TuningStore{tuning: tuning}
}

// Current returns the active tuning snapshot.
func (s *TuningStore) Current() Tuning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tuning
}

func (s *TuningStore) swap(tuning Tuning) {
	s.mu.Lock()
	s.tuning = tuning
	s.mu.Unlock()
}

// WatchTuningFile watches the tuning YAML for changes and hot-reloads it into
// the store. A file that fails to parse or validate is ignored and the
// previous tuning stays active. Blocks; run in a goroutine.
func WatchTuningFile(filePath string, store *TuningStore) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create tuning file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for tuning changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					tuning, err := LoadTuning(filePath)
					if err != nil {
						log.Printf("❌ Tuning reload rejected, keeping previous values: %v", err)
						return
					}
					store.swap(tuning)
					log.Printf("✅ Tuning reloaded from %s", filePath)
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  Tuning file watcher error: %v", err)
		}
	}
}
