// Package jobtest provides in-memory Store and Queue implementations for
// tests. MemQueue delivers each pushed descriptor to exactly one popper,
// which is the contract the worker concurrency tests rely on.
package jobtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuongbtq/file-pipeline/internal/job"
)

// MemStore is a mutex-guarded map keyed by tracking id. Records are copied
// on the way in and out so callers never share mutable state.
type MemStore struct {
	mu      sync.Mutex
	records map[string]job.Record
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]job.Record)}
}

func (s *MemStore) Get(ctx context.Context, trackingID string) (*job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[trackingID]
	if !ok {
		return nil, job.ErrJobNotFound
	}
	out := rec
	return &out, nil
}

func (s *MemStore) Create(ctx context.Context, rec *job.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.TrackingID]; ok {
		return fmt.Errorf("duplicate tracking id %q", rec.TrackingID)
	}
	s.records[rec.TrackingID] = *rec
	return nil
}

func (s *MemStore) Update(ctx context.Context, rec *job.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.TrackingID]; !ok {
		return job.ErrJobNotFound
	}
	s.records[rec.TrackingID] = *rec
	return nil
}

// Len returns the number of stored records.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// All returns a snapshot of every stored record.
func (s *MemStore) All() []job.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]job.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out
}

// MemQueue is a channel-backed FIFO queue.
type MemQueue struct {
	ch chan *job.Descriptor
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{ch: make(chan *job.Descriptor, capacity)}
}

func (q *MemQueue) Push(ctx context.Context, d *job.Descriptor) error {
	select {
	case q.ch <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemQueue) BlockingPop(ctx context.Context, timeout time.Duration) (*job.Descriptor, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-q.ch:
		return d, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of descriptors waiting in the queue.
func (q *MemQueue) Len() int {
	return len(q.ch)
}
