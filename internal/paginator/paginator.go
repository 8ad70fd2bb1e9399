// Package paginator implements a forward-only page cursor with first-seen-wins de-duplication.
package paginator

import (
	"context"
	"sync"
)

// FetchFunc loads one page. Pages are 1-based.
type FetchFunc[T any] func(ctx context.Context, page int) ([]T, error)

// Result describes the outcome of one LoadNext call.
type Result[T any] struct {
	// Items holds the newly merged items only.
	Items      []T
	Page       int
	EndReached bool
	// Skipped is true when no fetch was issued (end reached or already loading).
	Skipped bool
}

// Option configures a Cursor.
type Option[T any, K comparable] func(*Cursor[T, K])

// WithLoadingObserver registers a callback for loading-state transitions.
// It is called with true before each fetch and false after it.
func WithLoadingObserver[T any, K comparable](fn func(bool)) Option[T, K] {
	return func(c *Cursor[T, K]) { c.onLoading = fn }
}

// Cursor fetches pages one at a time. At most one fetch is in flight.
type Cursor[T any, K comparable] struct {
	fetch     FetchFunc[T]
	key       func(T) K
	onLoading func(bool)

	mu         sync.Mutex
	page       int
	endReached bool
	loading    bool
	generation uint64
	items      []T
	seen       map[K]struct{}
}

// New creates a cursor positioned at page 1.
func New[T any, K comparable](fetch FetchFunc[T], key func(T) K, opts ...Option[T, K]) *Cursor[T, K] {
	c := &Cursor[T, K]{
		fetch: fetch,
		key:   key,
		page:  1,
		seen:  make(map[K]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoadNext fetches the current page and merges it.
// On error nothing advances and the next call retries the same page.
func (c *Cursor[T, K]) LoadNext(ctx context.Context) (Result[T], error) {
	c.mu.Lock()
	if c.endReached || c.loading {
		res := Result[T]{Page: c.page, EndReached: c.endReached, Skipped: true}
		c.mu.Unlock()
		return res, nil
	}
	c.loading = true
	page := c.page
	gen := c.generation
	c.mu.Unlock()

	c.notify(true)
	items, err := c.fetch(ctx, page)
	defer c.notify(false)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// Reset while the fetch was running; the cursor already moved on.
		return Result[T]{Page: c.page, Skipped: true}, nil
	}
	c.loading = false
	if err != nil {
		return Result[T]{Page: c.page}, err
	}
	if len(items) == 0 {
		c.endReached = true
		return Result[T]{Page: c.page, EndReached: true}, nil
	}

	fresh := make([]T, 0, len(items))
	for _, item := range items {
		k := c.key(item)
		if _, dup := c.seen[k]; dup {
			continue
		}
		c.seen[k] = struct{}{}
		fresh = append(fresh, item)
	}
	c.items = append(c.items, fresh...)
	c.page++
	return Result[T]{Items: fresh, Page: c.page}, nil
}

// Reset rewinds the cursor to page 1 and forgets everything merged so far.
func (c *Cursor[T, K]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.page = 1
	c.endReached = false
	c.loading = false
	c.items = nil
	c.seen = make(map[K]struct{})
}

// Items returns a copy of everything merged so far.
func (c *Cursor[T, K]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Page returns the page the next fetch will request.
func (c *Cursor[T, K]) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// EndReached reports whether an empty page has been seen since the last reset.
func (c *Cursor[T, K]) EndReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endReached
}

// Loading reports whether a fetch is in flight.
func (c *Cursor[T, K]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Cursor[T, K]) notify(loading bool) {
	if c.onLoading != nil {
		c.onLoading(loading)
	}
}
