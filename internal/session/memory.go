// Package session provides TTL-bound conversation memory. Each session
// holds the last mentioned item type, color, gender, and a short query
// history; entries expire after the TTL and are swept periodically.
package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// Defaults used when the caller passes zero values.
const (
	DefaultTTL        = 30 * time.Minute
	DefaultSweep      = 10 * time.Minute
	DefaultMaxHistory = 5
)

// Context is the remembered state of one session.
type Context struct {
	LastItemType string    `json:"last_item_type,omitempty"`
	LastColor    string    `json:"last_color,omitempty"`
	LastGender   string    `json:"last_gender,omitempty"`
	LastQuery    string    `json:"last_query,omitempty"`
	LastUpdated  time.Time `json:"last_updated"`
	History      []string  `json:"history,omitempty"`
}

func (c *Context) clone() *Context {
	cp := *c
	cp.History = append([]string(nil), c.History...)
	return &cp
}

// Memory is the session store. Reads return copies; read-modify-write
// cycles run under a single lock so concurrent updates to one session
// never interleave.
type Memory struct {
	cache      *cache.Cache
	maxHistory int
	mu         sync.Mutex
}

// UpdateOption sets one remembered field during an Update.
type UpdateOption func(*Context)

// WithItemType remembers the item type mentioned in the query.
func WithItemType(itemType string) UpdateOption {
	return func(c *Context) {
		if itemType != "" {
			c.LastItemType = itemType
		}
	}
}

// WithColor remembers the color mentioned in the query.
func WithColor(color string) UpdateOption {
	return func(c *Context) {
		if color != "" {
			c.LastColor = color
		}
	}
}

// WithGender remembers the resolved target gender.
func WithGender(gender string) UpdateOption {
	return func(c *Context) {
		if gender != "" {
			c.LastGender = gender
		}
	}
}

// NewMemory creates a session store with the given TTL, sweep interval,
// and history cap. Zero values select the defaults.
func NewMemory(ttl, sweep time.Duration, maxHistory int) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if sweep <= 0 {
		sweep = DefaultSweep
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &Memory{
		cache:      cache.New(ttl, sweep),
		maxHistory: maxHistory,
	}
}

// Get returns a copy of the session context, or false if the session is
// unknown or expired.
func (m *Memory) Get(sessionID string) (*Context, bool) {
	if sessionID == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache.Get(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*Context).clone(), true
}

// Update records the query against the session, applies the options, and
// refreshes the TTL. It returns a copy of the updated context.
func (m *Memory) Update(sessionID, query string, opts ...UpdateOption) *Context {
	if sessionID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var ctx *Context
	if v, ok := m.cache.Get(sessionID); ok {
		ctx = v.(*Context)
	} else {
		ctx = &Context{}
	}
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.LastQuery = query
	ctx.LastUpdated = time.Now()
	if query != "" {
		ctx.History = append(ctx.History, query)
		if len(ctx.History) > m.maxHistory {
			ctx.History = ctx.History[len(ctx.History)-m.maxHistory:]
		}
	}
	m.cache.Set(sessionID, ctx, cache.DefaultExpiration)
	return ctx.clone()
}

// Clear forgets the session.
func (m *Memory) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Delete(sessionID)
}

// Len returns the number of live sessions.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.ItemCount()
}
