// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs at most one fn per key at a time. Callers arriving while a call
// is in flight wait for it and receive its result.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*call[T]
}

type call[T any] struct {
	done    chan struct{}
	cancel  context.CancelFunc
	val     T
	err     error
	dups    int
	waiters int
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it joins that call. shared reports whether the result went to more
// than one caller.
//
// fn runs on its own goroutine with a context that keeps the first caller's
// values but not its cancellation or deadline. Every caller waits on its own
// ctx: one whose ctx ends returns ctx.Err() without affecting the others. The
// call's context is cancelled once every caller has given up. The key is
// forgotten as soon as fn returns, so later callers start a fresh call.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (v T, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[string]*call[T])
	}
	c, ok := g.m[key]
	if ok {
		c.dups++
	} else {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call[T]{done: make(chan struct{}), cancel: cancel}
		g.m[key] = c
		go g.run(callCtx, key, c, fn)
	}
	c.waiters++
	g.mu.Unlock()

	select {
	case <-c.done:
		g.mu.Lock()
		shared = c.dups > 0
		g.mu.Unlock()
		return c.val, c.err, shared
	case <-ctx.Done():
		g.mu.Lock()
		c.waiters--
		abandoned := c.waiters == 0
		if abandoned && g.m[key] == c {
			delete(g.m, key)
		}
		shared = c.dups > 0
		g.mu.Unlock()
		if abandoned {
			c.cancel()
		}
		var zero T
		return zero, ctx.Err(), shared
	}
}

func (g *Group[T]) run(ctx context.Context, key string, c *call[T], fn func(context.Context) (T, error)) {
	defer c.cancel()
	c.val, c.err = fn(ctx)

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	g.mu.Unlock()
	close(c.done)
}

// InFlight returns the number of keys with a call in progress.
func (g *Group[T]) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}
