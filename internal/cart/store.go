package cart

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// MemoryStore keeps snapshots in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]Line
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]Line)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]Line, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.carts[key]
	out := make([]Line, len(src))
	copy(out, src)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, lines []Line) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(lines) == 0 {
		delete(s.carts, key)
		return nil
	}
	s.carts[key] = append([]Line(nil), lines...)
	return nil
}

type snapshot struct {
	Lines   []Line    `json:"lines"`
	SavedAt time.Time `json:"saved_at"`
}

// RedisStore keeps one JSON snapshot per session with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, prefix: "cart:"}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]Line, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return []Line{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get cart")
	}
	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	return snap.Lines, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, lines []Line) error {
	if len(lines) == 0 {
		return errors.Wrap(s.client.Del(ctx, s.prefix+key).Err(), "redis del cart")
	}
	raw, err := json.Marshal(snapshot{Lines: lines, SavedAt: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encode cart snapshot")
	}
	return errors.Wrap(s.client.Set(ctx, s.prefix+key, raw, s.ttl).Err(), "redis set cart")
}

// Registry hands out session carts. Carts whose last write failed stay in
// memory so the unsaved lines survive until a later write succeeds.
// Requests for one session run one at a time.
type Registry struct {
	store Store
	log   log.FieldLogger

	mu       sync.Mutex
	dirty    map[string]*Cart
	sessions map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func NewRegistry(store Store, logger log.FieldLogger) *Registry {
	return &Registry{store: store, log: logger, dirty: make(map[string]*Cart), sessions: make(map[string]*sessionLock)}
}

// lock serializes work on one session key. The returned func releases it.
func (r *Registry) lock(key string) func() {
	r.mu.Lock()
	s, ok := r.sessions[key]
	if !ok {
		s = &sessionLock{}
		r.sessions[key] = s
	}
	s.refs++
	r.mu.Unlock()

	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		r.mu.Lock()
		if s.refs--; s.refs == 0 {
			delete(r.sessions, key)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) load(ctx context.Context, key string) *Cart {
	r.mu.Lock()
	c, ok := r.dirty[key]
	r.mu.Unlock()
	if ok {
		return c
	}
	return Open(ctx, r.store, key, r.log)
}

// Get returns the session cart without mutating it.
func (r *Registry) Get(ctx context.Context, key string) *Cart {
	unlock := r.lock(key)
	defer unlock()
	return r.load(ctx, key)
}

// Update runs fn against the session cart and tracks its sync state. The
// load, fn and the snapshot write happen while the session is held.
func (r *Registry) Update(ctx context.Context, key string, fn func(c *Cart) error) (*Cart, error) {
	unlock := r.lock(key)
	defer unlock()

	c := r.load(ctx, key)
	if !c.Synced() {
		// a previous write failed; try again before applying the new change
		_ = c.Flush(ctx)
	}
	err := fn(c)
	r.mu.Lock()
	if c.Synced() {
		delete(r.dirty, key)
	} else {
		r.dirty[key] = c
	}
	r.mu.Unlock()
	return c, err
}

// Pending reports how many carts hold unsaved changes.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.dirty)
}
