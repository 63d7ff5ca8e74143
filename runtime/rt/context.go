package rt

import (
	"fmt"
	"sync"
)

// Context carries per-invocation values into a generated method.
type Context struct {
	mu       sync.RWMutex
	values   map[string]any
	services *Services
}

// NewContext returns a Context seeded with a copy of values.
func NewContext(values map[string]any) *Context {
	c := &Context{values: make(map[string]any, len(values))}
	for k, v := range values {
		c.values[k] = v
	}
	return c
}

// Get returns the value stored under key, or nil.
func (c *Context) Get(key string) any {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// Lookup reports whether key is present.
func (c *Context) Lookup(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set stores v under key.
func (c *Context) Set(key string, v any) {
	c.mu.Lock()
	if c.values == nil {
		c.values = make(map[string]any)
	}
	c.values[key] = v
	c.mu.Unlock()
}

// WithServices attaches a service container and returns c.
func (c *Context) WithServices(s *Services) *Context {
	c.mu.Lock()
	c.services = s
	c.mu.Unlock()
	return c
}

// Services returns the attached container. A nil container is valid and empty.
func (c *Context) Services() *Services {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// Service is shorthand for Services().Get(key).
func (c *Context) Service(key string) any {
	return c.Services().Get(key)
}

// Services is a minimal keyed service container.
type Services struct {
	mu    sync.RWMutex
	items map[string]any
}

// NewServices creates an empty container.
func NewServices() *Services {
	return &Services{items: make(map[string]any)}
}

// Register stores svc under key, replacing any previous registration.
func (s *Services) Register(key string, svc any) {
	s.mu.Lock()
	s.items[key] = svc
	s.mu.Unlock()
}

// Get returns the service registered under key, or nil.
func (s *Services) Get(key string) any {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key]
}

// MustGet returns the service registered under key and panics when missing.
func (s *Services) MustGet(key string) any {
	svc := s.Get(key)
	if svc == nil {
		panic(fmt.Sprintf("rt: service %q is not registered", key))
	}
	return svc
}
