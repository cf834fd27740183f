package bizday

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// holidayFile is the on-disk calendar format:
//
//	holidays:
//	  - 2026-01-01
//	  - 2026-01-12
type holidayFile struct {
	Holidays []string `yaml:"holidays"`
}

// FileSource loads holidays from a YAML file and keeps the parsed set in
// memory. Watch re-reads the file when it changes on disk.
type FileSource struct {
	path string

	mu  sync.RWMutex
	set map[string]bool
}

// NewFileSource loads the holiday calendar at path
func NewFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Holidays returns the current holiday set
func (s *FileSource) Holidays() (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set, nil
}

func (s *FileSource) reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read holiday calendar: %w", err)
	}

	var file holidayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse holiday calendar: %w", err)
	}

	set := make(map[string]bool, len(file.Holidays))
	for _, raw := range file.Holidays {
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return fmt.Errorf("invalid holiday date %q: %w", raw, err)
		}
		set[raw] = true
	}

	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
	return nil
}

// Watch reloads the calendar whenever the file changes. It blocks until
// stop is closed and is meant to run in its own goroutine. A failed reload
// keeps the previous set.
func (s *FileSource) Watch(stop <-chan struct{}, log *logrus.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.path); err != nil {
		return fmt.Errorf("failed to watch holiday calendar: %w", err)
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				log.WithError(err).Warn("holiday calendar reload failed, keeping previous set")
			} else {
				log.WithField("path", s.path).Info("holiday calendar reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("holiday calendar watcher error")
		}
	}
}

// StaticSource is a fixed in-memory holiday set, mainly for tests
type StaticSource map[string]bool

// Holidays returns the static set
func (s StaticSource) Holidays() (map[string]bool, error) {
	return s, nil
}
