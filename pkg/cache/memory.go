package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const memoryDefaultTTL = 7 * 24 * time.Hour

type memoryEntry struct {
	key      string
	value    []byte
	expireAt time.Time
}

// MemoryCache is an in-process Service with LRU eviction. It encodes values
// the same way RedisCache does, so tests and single-process runs can swap it
// in.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	lru     *list.List // front is most recently used
	maxSize int
	sweep   time.Duration
	done    chan struct{}
	once    sync.Once
}

// MemoryOption tunes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the number of keys.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(mc *MemoryCache) {
		if n > 0 {
			mc.maxSize = n
		}
	}
}

// WithMemoryCleanup sets how often expired keys are swept.
func WithMemoryCleanup(d time.Duration) MemoryOption {
	return func(mc *MemoryCache) {
		if d > 0 {
			mc.sweep = d
		}
	}
}

// NewMemoryCache starts a sweeper goroutine; Close stops it.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		maxSize: 1000,
		sweep:   5 * time.Minute,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(mc)
	}
	go mc.sweeper()
	return mc
}

// live returns the entry for key, dropping it if expired. Callers hold mu.
func (mc *MemoryCache) live(key string, now time.Time) (*list.Element, bool) {
	el, ok := mc.items[key]
	if !ok {
		return nil, false
	}
	if now.After(el.Value.(*memoryEntry).expireAt) {
		mc.remove(el)
		return nil, false
	}
	return el, true
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.lru.Remove(el)
	delete(mc.items, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = memoryDefaultTTL
	}
	e := &memoryEntry{key: key, value: append([]byte(nil), data...), expireAt: time.Now().Add(expiration)}

	mc.mu.Lock()
	defer mc.mu.Unlock()
	if el, ok := mc.items[key]; ok {
		el.Value = e
		mc.lru.MoveToFront(el)
		return nil
	}
	if mc.lru.Len() >= mc.maxSize {
		mc.remove(mc.lru.Back())
	}
	mc.items[key] = mc.lru.PushFront(e)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	el, ok := mc.live(key, time.Now())
	if !ok {
		mc.mu.Unlock()
		return ErrCacheMiss
	}
	mc.lru.MoveToFront(el)
	data := el.Value.(*memoryEntry).value
	mc.mu.Unlock()

	return decode(data, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	now := time.Now()
	for _, k := range keys {
		if _, ok := mc.live(k, now); ok {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	el, ok := mc.live(key, time.Now())
	if !ok {
		return false, nil
	}
	el.Value.(*memoryEntry).expireAt = time.Now().Add(expiration)
	return true, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for k, v := range values {
		if err := mc.Set(ctx, k, v, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MemoryCache) sweeper() {
	ticker := time.NewTicker(mc.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-mc.done:
			return
		case now := <-ticker.C:
			mc.mu.Lock()
			for el := mc.lru.Back(); el != nil; {
				prev := el.Prev()
				if now.After(el.Value.(*memoryEntry).expireAt) {
					mc.remove(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		}
	}
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.once.Do(func() { close(mc.done) })
	return nil
}
