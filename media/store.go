// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package media

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Store resolves opaque source refs to asset bytes. Path exists because
// ffmpeg wants real files; stores without backing files spool to a
// temporary file and return that.
type Store interface {
	// Open returns the asset bytes for ref.
	Open(ref string) (io.ReadCloser, error)

	// Path returns a filesystem path holding the asset bytes. The path
	// stays valid until the store is closed.
	Path(ref string) (string, error)
}

// DirStore serves assets from a directory tree. Refs are slash paths
// relative to the root; refs that escape the root are rejected.
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

func (s *DirStore) resolve(ref string) (string, error) {
	if ref == "" || !filepath.IsLocal(filepath.FromSlash(ref)) {
		return "", fmt.Errorf("%w: invalid ref %q", ErrNotFound, ref)
	}
	return filepath.Join(s.root, filepath.FromSlash(ref)), nil
}

// Open returns the file for ref.
func (s *DirStore) Open(ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("media: open %q: %w", ref, err)
	}
	return f, nil
}

// Path returns the file path for ref, verifying the file exists.
func (s *DirStore) Path(ref string) (string, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
		}
		return "", fmt.Errorf("media: stat %q: %w", ref, err)
	}
	return path, nil
}

// MemStore serves assets from in-memory blobs. Path spools a blob to a
// temporary file on first use and reuses it afterwards; Close removes
// the spool directory.
type MemStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	dir     string
	spooled map[string]string
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		blobs:   make(map[string][]byte),
		spooled: make(map[string]string),
	}
}

// Put stores data under ref, replacing any previous blob. A stale
// spooled copy is dropped so Path re-spools the new bytes.
func (s *MemStore) Put(ref string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[ref] = data
	if path, ok := s.spooled[ref]; ok {
		delete(s.spooled, ref)
		_ = os.Remove(path)
	}
}

// Open returns a reader over the blob for ref.
func (s *MemStore) Open(ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.blobs[ref]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Path spools the blob for ref to a temporary file and returns its path.
// The extension of ref is preserved so ffmpeg can pick demuxers by name.
func (s *MemStore) Path(ref string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[ref]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	if path, ok := s.spooled[ref]; ok {
		return path, nil
	}

	if s.dir == "" {
		dir, err := os.MkdirTemp("", "reel-media-*")
		if err != nil {
			return "", fmt.Errorf("media: spool dir: %w", err)
		}
		s.dir = dir
	}

	f, err := os.CreateTemp(s.dir, "blob-*"+filepath.Ext(ref))
	if err != nil {
		return "", fmt.Errorf("media: spool %q: %w", ref, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("media: spool %q: %w", ref, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("media: spool %q: %w", ref, err)
	}

	s.spooled[ref] = f.Name()
	return f.Name(), nil
}

// Close removes any spooled files.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spooled = make(map[string]string)
	if s.dir == "" {
		return nil
	}
	err := os.RemoveAll(s.dir)
	s.dir = ""
	return err
}
