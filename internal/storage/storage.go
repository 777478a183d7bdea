// Package storage provides file-based JSON storage and the rollout log.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage stores JSON documents and JSON-lines logs under a base directory.
// A key path such as ["rollout", "ses_1"] maps to base/rollout/ses_1.json
// for documents and base/rollout/ses_1.jsonl for logs.
type Storage struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*fileLock
}

// New creates a new Storage instance.
func New(basePath string) *Storage {
	return &Storage{
		basePath: basePath,
		locks:    make(map[string]*fileLock),
	}
}

// BasePath returns the root directory.
func (s *Storage) BasePath() string { return s.basePath }

func (s *Storage) pathTo(path []string, ext string) string {
	parts := append([]string{s.basePath}, path...)
	return filepath.Join(parts...) + ext
}

// Get retrieves a document.
func (s *Storage) Get(ctx context.Context, path []string, v any) error {
	data, err := os.ReadFile(s.pathTo(path, ".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

// Put stores a document atomically under a file lock.
func (s *Storage) Put(ctx context.Context, path []string, v any) error {
	filePath := s.pathTo(path, ".json")

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	release, err := s.lock(filePath)
	if err != nil {
		return err
	}
	defer release()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

// Append adds v as one JSON line to the log at path.
func (s *Storage) Append(ctx context.Context, path []string, v any) error {
	filePath := s.pathTo(path, ".jsonl")

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	release, err := s.lock(filePath)
	if err != nil {
		return err
	}
	defer release()

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append: %w", err)
	}
	return nil
}

// ReadLines calls fn for every line of the log at path, in order.
// A missing log has no lines.
func (s *Storage) ReadLines(ctx context.Context, path []string, fn func(line json.RawMessage) error) error {
	f, err := os.Open(s.pathTo(path, ".jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(json.RawMessage(append([]byte(nil), line...))); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Storage) lock(filePath string) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[filePath]
	if !ok {
		l = &fileLock{path: filePath}
		s.locks[filePath] = l
	}
	s.mu.Unlock()

	release, err := l.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return release, nil
}
