package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

type entry struct {
	body        []byte
	contentType string
	expiresAt   time.Time
}

// Store is a process-local TTL cache for GET responses. Handlers run
// concurrently, so the map is guarded by a RWMutex; a janitor goroutine sweeps
// expired entries until Stop is called.
type Store struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry

	stop sync.Once
	done chan struct{}
}

func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Minute
	}
	s := &Store{
		ttl:     ttl,
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Get returns the cached body and content type for key. An entry is served
// only strictly before its expiry; at or past expiry it is treated as absent.
// A nil Store never hits.
func (s *Store) Get(key string) ([]byte, string, bool) {
	if s == nil {
		return nil, "", false
	}
	now := time.Now()
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || !now.Before(e.expiresAt) {
		return nil, "", false
	}
	return e.body, e.contentType, true
}

func (s *Store) Set(key string, body []byte, contentType string) {
	if s == nil {
		return
	}
	e := entry{
		body:        append([]byte(nil), body...),
		contentType: contentType,
		expiresAt:   time.Now().Add(s.ttl),
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
}

// InvalidatePrefix drops every entry whose key starts with prefix. Writers
// call this after any mutation of the underlying resource group.
func (s *Store) InvalidatePrefix(prefix string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Stop terminates the janitor. Safe to call more than once.
func (s *Store) Stop() {
	if s == nil {
		return
	}
	s.stop.Do(func() { close(s.done) })
}

func (s *Store) janitor() {
	interval := s.ttl
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-t.C:
			s.mu.Lock()
			for k, e := range s.entries {
				if !now.Before(e.expiresAt) {
					delete(s.entries, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Middleware serves 200 GET responses from the store, keyed by the request
// URL under the given prefix. Only anonymous requests are cached: a response
// shaped by an authenticated viewer must never be replayed to anyone else.
func Middleware(s *Store, prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodGet || c.Locals("user") != nil {
			return c.Next()
		}
		key := prefix + ":" + c.OriginalURL()
		if body, ct, ok := s.Get(key); ok {
			c.Set("X-Cache", "hit")
			c.Response().Header.SetContentType(ct)
			return c.Send(body)
		}
		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() == fiber.StatusOK {
			s.Set(key, c.Response().Body(), string(c.Response().Header.ContentType()))
		}
		return nil
	}
}
