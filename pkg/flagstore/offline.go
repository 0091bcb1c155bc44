package flagstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fieldline/fieldline/pkg/permission"
)

// SnapshotStaleAfter bounds how long a persisted permission snapshot may
// substitute for live flag data. Past this window the snapshot is discarded
// and the hardcoded role defaults take over.
const SnapshotStaleAfter = 24 * time.Hour

// PermissionSnapshot is the flat action-to-boolean map persisted after every
// successful tenant flag refresh, for offline and error fallback.
type PermissionSnapshot struct {
	Permissions map[string]bool `json:"permissions"`
	SavedAt     time.Time       `json:"saved_at"`
}

// Stale reports whether the snapshot is too old to serve.
func (p *PermissionSnapshot) Stale(now time.Time) bool {
	return now.Sub(p.SavedAt) >= SnapshotStaleAfter
}

// SnapshotStore persists the offline permission snapshot under a fixed
// per-session key. Load returns (nil, nil) when nothing is stored.
type SnapshotStore interface {
	Load(ctx context.Context) (*PermissionSnapshot, error)
	Save(ctx context.Context, snap *PermissionSnapshot) error
}

// RedisSnapshotStore keeps the snapshot in Redis, expiring it server-side at
// the staleness window so abandoned sessions clean up after themselves.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotStore creates a snapshot store keyed to the session
// identity.
func NewRedisSnapshotStore(client *redis.Client, id permission.Identity) *RedisSnapshotStore {
	return &RedisSnapshotStore{
		client: client,
		key:    fmt.Sprintf("fieldline:permsnap:%s:%s", id.TenantID, id.UserID),
	}
}

var _ SnapshotStore = (*RedisSnapshotStore)(nil)

func (s *RedisSnapshotStore) Load(ctx context.Context) (*PermissionSnapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap PermissionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Join(ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snap *PermissionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, SnapshotStaleAfter).Err()
}

// MemorySnapshotStore is an in-process SnapshotStore for tests and
// single-node deployments.
type MemorySnapshotStore struct {
	mu      sync.Mutex
	snap    *PermissionSnapshot
	loadErr error
}

// NewMemorySnapshotStore creates an empty in-memory snapshot store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

var _ SnapshotStore = (*MemorySnapshotStore)(nil)

func (s *MemorySnapshotStore) Load(_ context.Context) (*PermissionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.snap == nil {
		return nil, nil
	}
	cp := PermissionSnapshot{Permissions: maps.Clone(s.snap.Permissions), SavedAt: s.snap.SavedAt}
	return &cp, nil
}

func (s *MemorySnapshotStore) Save(_ context.Context, snap *PermissionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := PermissionSnapshot{Permissions: maps.Clone(snap.Permissions), SavedAt: snap.SavedAt}
	s.snap = &cp
	return nil
}

// SetLoadError makes subsequent Loads fail, for exercising corrupt-snapshot
// handling in tests.
func (s *MemorySnapshotStore) SetLoadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

// Snapshot returns the currently stored snapshot, if any.
func (s *MemorySnapshotStore) Snapshot() *PermissionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}
