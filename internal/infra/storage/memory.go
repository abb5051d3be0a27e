package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// MemoryStore is the default ImageStore: blobs live only as long as the process.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[diagnosis.ImageRef]diagnosis.Blob
	bytes int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{blobs: make(map[diagnosis.ImageRef]diagnosis.Blob)}
}

func (s *MemoryStore) Put(_ context.Context, key string, data []byte, contentType string) (diagnosis.ImageRef, error) {
	ref := diagnosis.ImageRef(key)
	cp := append([]byte(nil), data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.blobs[ref]; ok {
		s.bytes -= int64(len(old.Data))
	}
	s.blobs[ref] = diagnosis.Blob{Data: cp, ContentType: contentType}
	s.bytes += int64(len(cp))
	return ref, nil
}

func (s *MemoryStore) Get(_ context.Context, ref diagnosis.ImageRef) (diagnosis.Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[ref]
	if !ok {
		return diagnosis.Blob{}, fmt.Errorf("%w: %s", diagnosis.ErrBlobNotFound, ref)
	}
	return b, nil
}

func (s *MemoryStore) Release(_ context.Context, ref diagnosis.ImageRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.blobs[ref]; ok {
		s.bytes -= int64(len(b.Data))
		delete(s.blobs, ref)
	}
	return nil
}

// Check always succeeds.
func (s *MemoryStore) Check(context.Context) error { return nil }

// Len reports how many blobs are held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// Bytes reports the total size of held blobs.
func (s *MemoryStore) Bytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}
