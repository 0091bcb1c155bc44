package docstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// subscriptionBuffer bounds undelivered snapshots per subscriber. Consumers
// that fall this far behind only ever needed the latest state anyway.
const subscriptionBuffer = 8

// MemoryStore is an in-process Store used in tests and single-node
// deployments. Writes notify live subscriptions synchronously, which gives
// tests deterministic update ordering.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]map[string]any
	subs   map[string][]*memorySubscription
	closed bool
}

// NewMemoryStore creates an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]any),
		subs: make(map[string][]*memorySubscription),
	}
}

// Seed places a document without notifying subscribers, for test setup.
func (s *MemoryStore) Seed(path string, doc map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = deepCopy(doc)
}

// Get reads the current state of a document.
func (s *MemoryStore) Get(_ context.Context, path string) (Snapshot, error) {
	if err := validatePath(path); err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrStoreClosed
	}
	return s.snapshotLocked(path), nil
}

// SetMerge merges fields into the document and delivers the new state to
// every live subscription on the path.
func (s *MemoryStore) SetMerge(_ context.Context, path string, fields map[string]any) error {
	if err := validatePath(path); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	doc, ok := s.docs[path]
	if !ok {
		doc = make(map[string]any)
		s.docs[path] = doc
	}
	deepMerge(doc, fields)

	snap := s.snapshotLocked(path)
	for _, sub := range s.subs[path] {
		sub.push(snap)
	}
	return nil
}

// Subscribe opens a snapshot stream, delivering the current state first.
func (s *MemoryStore) Subscribe(_ context.Context, path string) (Subscription, error) {
	if err := validatePath(path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	sub := &memorySubscription{
		store: s,
		path:  path,
		ch:    make(chan Snapshot, subscriptionBuffer),
	}
	sub.push(s.snapshotLocked(path))
	s.subs[path] = append(s.subs[path], sub)
	return sub, nil
}

// FailSubscriptions terminates every live subscription on the path with the
// given error. Test hook for exercising listener-failure fallback paths.
func (s *MemoryStore) FailSubscriptions(path string, err error) {
	s.mu.Lock()
	subs := s.subs[path]
	delete(s.subs, path)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

// Close terminates all subscriptions and rejects further operations.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	var all []*memorySubscription
	for _, subs := range s.subs {
		all = append(all, subs...)
	}
	clear(s.subs)
	s.mu.Unlock()

	for _, sub := range all {
		sub.fail(ErrStoreClosed)
	}
}

func (s *MemoryStore) snapshotLocked(path string) Snapshot {
	doc, ok := s.docs[path]
	snap := Snapshot{Path: path, Exists: ok, UpdatedAt: time.Now()}
	if ok {
		snap.Data = deepCopy(doc)
	}
	return snap
}

func (s *MemoryStore) remove(path string, sub *memorySubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.subs[path]
	for i, candidate := range subs {
		if candidate == sub {
			s.subs[path] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

type memorySubscription struct {
	store *MemoryStore
	path  string

	mu     sync.Mutex
	ch     chan Snapshot
	err    error
	closed bool
}

func (s *memorySubscription) Snapshots() <-chan Snapshot { return s.ch }

func (s *memorySubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *memorySubscription) Unsubscribe() {
	s.store.remove(s.path, s)
	s.finish(nil)
}

func (s *memorySubscription) push(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
	default:
		// Subscriber is not draining; the latest state will still reach it
		// through a later update or a re-read, so dropping is safe here.
	}
}

func (s *memorySubscription) fail(err error) {
	s.finish(err)
}

func (s *memorySubscription) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

func validatePath(path string) error {
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrInvalidPath
	}
	return nil
}

// deepMerge merges src into dst: nested maps merge recursively, everything
// else replaces.
func deepMerge(dst, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			deepMerge(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			dst[key] = deepCopy(srcMap)
			continue
		}
		dst[key] = value
	}
}

func deepCopy(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			dst[key] = deepCopy(nested)
			continue
		}
		dst[key] = value
	}
	return dst
}

var _ Store = (*MemoryStore)(nil)
