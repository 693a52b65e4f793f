// Package store persists routed records as JSON documents on a
// billy.Filesystem. It is the I/O-owning caller the pure router expects:
// it creates destination directories, writes content, and injects a
// uniqueness token so concurrent writers never collide on a rendered path.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/agentic-research/coherence/api"
	"github.com/agentic-research/coherence/internal/logging"
	"github.com/agentic-research/coherence/internal/route"
)

// Document is one stored memory.
type Document struct {
	Timestamp string         `json:"timestamp"`
	Record    map[string]any `json:"record"`
	Content   any            `json:"content"`
	Path      string         `json:"_path,omitempty"`
}

// Store routes records through an engine and persists them.
type Store struct {
	fs     billy.Filesystem
	engine *route.Engine
	logger *slog.Logger
	now    func() time.Time // test seam
}

// New builds a store over the given filesystem and routing engine.
func New(fs billy.Filesystem, engine *route.Engine) *Store {
	return &Store{
		fs:     fs,
		engine: engine,
		logger: logging.New("store"),
		now:    time.Now,
	}
}

// Engine returns the store's routing engine.
func (s *Store) Engine() *route.Engine { return s.engine }

// Remember routes a record and writes its document. The record gains a
// compact timestamp and a short uid token when it lacks them; templates
// referencing {uid} therefore always render a collision-free name. Routing
// and template failures surface unchanged and nothing is written.
func (s *Store) Remember(content any, rec api.Record) (string, error) {
	rec = rec.Clone()
	ts := s.now().UTC()
	if _, ok := rec["timestamp"]; !ok {
		rec["timestamp"] = api.Str(ts.Format("20060102_150405"))
	}
	if _, ok := rec["uid"]; !ok {
		rec["uid"] = api.Str(uuid.NewString()[:8])
	}

	dest, err := s.engine.Route(rec)
	if err != nil {
		return "", err
	}

	doc := Document{
		Timestamp: ts.Format(time.RFC3339),
		Record:    rec.Plain(),
		Content:   content,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}

	if err := s.fs.MkdirAll(path.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", path.Dir(dest), err)
	}
	if err := writeFile(s.fs, dest, data); err != nil {
		return "", err
	}
	s.logger.Debug("stored", "path", dest)
	return dest, nil
}

// Recall loads the documents matching a query intent, newest first.
func (s *Store) Recall(intent api.Record) ([]Document, error) {
	return s.RecallPattern(Widen(s.pattern(intent)))
}

// pattern returns the engine pattern for an intent. An empty intent covers
// the whole tree directly; walking the schema shape would tie the match to
// one branch's segment names.
func (s *Store) pattern(intent api.Record) string {
	if len(intent) == 0 {
		return path.Join(s.engine.Root(), "*")
	}
	return s.engine.Pattern(intent)
}

// RecallPattern loads documents under an explicit glob pattern. Unreadable
// or non-JSON files are skipped, matching the tolerant read path callers
// expect from a browsable store.
func (s *Store) RecallPattern(pattern string) ([]Document, error) {
	matches, err := s.glob(pattern)
	if err != nil {
		return nil, err
	}

	var docs []Document
	for _, p := range matches {
		data, err := readFile(s.fs, p)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "path", p, "error", err)
			continue
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Warn("skipping malformed document", "path", p, "error", err)
			continue
		}
		doc.Path = p
		docs = append(docs, doc)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Timestamp != docs[j].Timestamp {
			return docs[i].Timestamp > docs[j].Timestamp
		}
		return docs[i].Path > docs[j].Path
	})
	return docs, nil
}

// Forget deletes documents matching the intent. A non-zero before limits
// deletion to documents older than the cutoff. Returns the number deleted.
func (s *Store) Forget(intent api.Record, before time.Time) (int, error) {
	matches, err := s.glob(Widen(s.pattern(intent)))
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, p := range matches {
		if !before.IsZero() {
			data, err := readFile(s.fs, p)
			if err != nil {
				continue
			}
			var doc Document
			if err := json.Unmarshal(data, &doc); err != nil {
				continue
			}
			at, err := time.Parse(time.RFC3339, doc.Timestamp)
			if err != nil || !at.Before(before) {
				continue
			}
		}
		if err := s.fs.Remove(p); err != nil {
			s.logger.Warn("delete failed", "path", p, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// Widen turns an engine pattern into a recursive document glob: the
// trailing filename wildcard becomes "**/*.json" so documents at any depth
// under the matched levels are covered.
func Widen(pattern string) string {
	if strings.HasSuffix(pattern, ".json") {
		return pattern
	}
	if pattern == "*" {
		return "**/*.json"
	}
	pattern = strings.TrimSuffix(pattern, "/*")
	return pattern + "/**/*.json"
}

// glob walks the filesystem and returns sorted paths matching the pattern.
// doublestar supplies the "**" semantics path.Match lacks.
func (s *Store) glob(pattern string) ([]string, error) {
	var matches []string
	err := s.walk(".", func(p string) error {
		ok, err := doublestar.Match(pattern, p)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (s *Store) walk(dir string, fn func(path string) error) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		// A root that does not exist yet simply has no matches.
		return nil
	}
	for _, entry := range entries {
		p := path.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := s.walk(p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(fs billy.Filesystem, name string, data []byte) error {
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

func readFile(fs billy.Filesystem, name string) ([]byte, error) {
	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }() // safe to ignore
	return io.ReadAll(f)
}
