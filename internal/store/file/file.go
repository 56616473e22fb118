// Package file persists documents in a single JSON file, the moral
// equivalent of a browser profile's local storage. The whole file is
// rewritten on every Save; two processes sharing one path get
// last-writer-wins semantics.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ecogrove/market/internal/store"
)

type Store struct {
	mu   sync.Mutex
	file *os.File
	docs map[string]json.RawMessage
}

func Open(path string) (*Store, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	s := &Store{file: f}

	err = s.load()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) Close() error { return s.file.Close() }

func (s *Store) load() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if info.Size() == 0 {
		s.docs = make(map[string]json.RawMessage)
		return nil
	}

	var docs map[string]json.RawMessage

	err = json.NewDecoder(s.file).Decode(&docs)
	if err != nil {
		// A torn or hand-mangled file counts as empty, not fatal.
		docs = make(map[string]json.RawMessage)
	}

	s.docs = docs

	return nil
}

func (s *Store) flushLocked() error {
	_, err := s.file.Seek(0, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	err = json.NewEncoder(s.file).Encode(s.docs)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	// truncate in case new content is shorter
	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("tell: %w", err)
	}

	err = s.file.Truncate(pos)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	return s.file.Sync()
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	doc, ok := s.docs[key]
	if !ok {
		return nil, store.ErrNoDocument
	}

	out := make([]byte, len(doc))
	copy(out, doc)

	return out, nil
}

func (s *Store) Save(ctx context.Context, key string, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !json.Valid(doc) {
		return fmt.Errorf("save %q: document is not valid JSON", key)
	}

	cp := make(json.RawMessage, len(doc))
	copy(cp, doc)
	s.docs[key] = cp

	return s.flushLocked()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, ok := s.docs[key]
	if !ok {
		return nil
	}

	delete(s.docs, key)

	return s.flushLocked()
}
