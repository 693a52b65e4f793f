// Package sentinel watches an inbox directory and routes incoming record
// files through the store. Records that fit the schema find their home;
// records that do not are moved to quarantine. It is a thin boundary
// collaborator: all routing decisions live in the core.
package sentinel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/logging"
	"github.com/agentic-research/coherence/internal/store"
)

// Stats counts sentinel outcomes.
type Stats struct {
	Admitted int `json:"admitted"`
	Rejected int `json:"rejected"`
	Errors   int `json:"errors"`
}

// Sentinel routes files landing in an inbox directory.
type Sentinel struct {
	inbox      string
	quarantine string
	store      *store.Store
	logger     *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New builds a sentinel. Inbox and quarantine directories are created if
// missing.
func New(inbox, quarantine string, st *store.Store) (*Sentinel, error) {
	for _, dir := range []string{inbox, quarantine} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	return &Sentinel{
		inbox:      inbox,
		quarantine: quarantine,
		store:      st,
		logger:     logging.New("sentinel"),
	}, nil
}

// Stats returns a snapshot of the counters.
func (s *Sentinel) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run sweeps the inbox once, then watches it until the context is
// cancelled. Only .json files are considered; everything else is ignored.
func (s *Sentinel) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }() // safe to ignore

	if err := watcher.Add(s.inbox); err != nil {
		return fmt.Errorf("watch %s: %w", s.inbox, err)
	}

	// Files that landed before the watch started.
	if err := s.Sweep(); err != nil {
		return err
	}

	s.logger.Info("watching inbox", "inbox", s.inbox, "quarantine", s.quarantine)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				s.Process(ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("watch error", "error", err)
		}
	}
}

// Sweep processes every file already sitting in the inbox.
func (s *Sentinel) Sweep() error {
	entries, err := os.ReadDir(s.inbox)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s.Process(filepath.Join(s.inbox, entry.Name()))
	}
	return nil
}

// Process routes a single inbox file. The file must hold a flat JSON
// object; an optional "content" field carries the document payload and the
// remaining fields form the routing record. Admitted files are removed
// from the inbox; everything else moves to quarantine.
func (s *Sentinel) Process(path string) {
	if !strings.HasSuffix(path, ".json") {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return // already handled or gone
	}

	rec, content, err := parsePacket(path)
	if err != nil {
		s.logger.Warn("rejecting packet", "path", path, "error", err)
		s.reject(path)
		return
	}

	dest, err := s.store.Remember(content, rec)
	if err != nil {
		s.logger.Warn("no home for packet", "path", path, "error", err)
		s.reject(path)
		return
	}

	if err := os.Remove(path); err != nil {
		s.logger.Warn("inbox cleanup failed", "path", path, "error", err)
		s.countError()
		return
	}
	s.logger.Info("admitted", "path", path, "dest", dest)
	s.mu.Lock()
	s.stats.Admitted++
	s.mu.Unlock()
}

func parsePacket(path string) (api.Record, any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, fmt.Errorf("parse packet: %w", err)
	}
	content := raw["content"]
	delete(raw, "content")
	rec, err := api.NewRecord(raw)
	if err != nil {
		return nil, nil, err
	}
	return rec, content, nil
}

func (s *Sentinel) reject(path string) {
	dest := filepath.Join(s.quarantine, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		s.logger.Error("quarantine failed", "path", path, "error", err)
		s.countError()
		return
	}
	s.mu.Lock()
	s.stats.Rejected++
	s.mu.Unlock()
}

func (s *Sentinel) countError() {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
}
