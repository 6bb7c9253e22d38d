package querycache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"
)

// QueryOptions describes one query. The zero value of Disabled means the
// query runs; set it while a prerequisite such as a user id is missing.
type QueryOptions[T any] struct {
	Key       Key
	Fetch     func(ctx context.Context) (T, error)
	StaleTime time.Duration
	Disabled  bool
	// Retries overrides the client default when set.
	Retries *int
}

// Query returns cached data when fresh. Stale data is returned immediately
// and refetched in the background. Without data the caller waits for a
// fetch, shared with every other caller of the same key. Cancelling ctx
// only abandons this caller's wait.
func Query[T any](ctx context.Context, c *Client, opts QueryOptions[T]) (T, error) {
	var zero T
	if opts.Disabled {
		return zero, ErrQueryDisabled
	}
	if opts.Fetch == nil {
		return zero, fmt.Errorf("[querycache Query] %s has no fetch function", opts.Key)
	}

	retries := c.queryRetries
	if opts.Retries != nil && *opts.Retries >= 0 {
		retries = *opts.Retries
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return zero, ErrClosed
	}
	e := c.entryLocked(opts.Key)
	e.fetch = func(ctx context.Context) (any, error) { return opts.Fetch(ctx) }
	e.staleTime = opts.StaleTime
	e.retries = retries
	if e.hasData {
		data := e.data
		fresh := c.now().Before(e.staleAt)
		c.mu.Unlock()
		if fresh {
			c.metrics.lookup(lookupFresh)
		} else {
			c.metrics.lookup(lookupStale)
			c.background(opts.Key)
		}
		return cast[T](opts.Key, data)
	}
	c.mu.Unlock()

	c.metrics.lookup(lookupMiss)
	select {
	case res := <-c.fetchShared(opts.Key):
		if res.Err != nil {
			return zero, res.Err
		}
		return cast[T](opts.Key, res.Val)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// GetQueryData returns the cached data for key without fetching.
func GetQueryData[T any](c *Client, key Key) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return zero, false
	}
	v, ok := e.data.(T)
	if !ok && e.data != nil {
		return zero, false
	}
	return v, true
}

// SetQueryData replaces the data under key with fn(old). fn must return a
// new value rather than modify old in place, so snapshots stay intact.
func SetQueryData[T any](c *Client, key Key, fn func(old T, ok bool) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entryLocked(key)
	var old T
	ok := false
	if e.hasData {
		old, ok = e.data.(T)
	}
	c.setDataLocked(e, fn(old, ok))
}

// SetQueriesData applies fn to every entry under prefix that holds a T.
func SetQueriesData[T any](c *Client, prefix Key, fn func(old T) T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.matchingLocked(prefix) {
		if !e.hasData {
			continue
		}
		old, ok := e.data.(T)
		if !ok {
			continue
		}
		c.setDataLocked(e, fn(old))
	}
}

func cast[T any](key Key, data any) (T, error) {
	var zero T
	if data == nil {
		return zero, nil
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("[querycache] %s holds %T, not %T", key, data, zero)
	}
	return v, nil
}

// fetchShared starts, or joins, the single in-flight fetch for key. The
// fetch runs on the client's lifetime context, not the caller's.
func (c *Client) fetchShared(key Key) <-chan singleflight.Result {
	return c.group.DoChan(key.String(), func() (any, error) {
		c.mu.Lock()
		if c.ctx.Err() != nil {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		e := c.entryLocked(key)
		fctx, cancel := context.WithCancel(c.ctx)
		e.inflight = true
		e.cancel = cancel
		gen := e.fetchGen
		fetch, retries := e.fetch, e.retries
		c.mu.Unlock()
		defer cancel()

		data, err := retry(fctx, c, retries, fetch)
		c.metrics.fetched(err)

		c.mu.Lock()
		defer c.mu.Unlock()
		if e.fetchGen != gen {
			return nil, ErrQueryCancelled
		}
		e.inflight = false
		e.cancel = nil
		if err != nil {
			e.err = err
			e.status = StatusError
			return nil, err
		}
		c.setDataLocked(e, data)
		return data, nil
	})
}

// background refetches key without blocking the caller.
func (c *Client) background(key Key) {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	if !ok || e.fetch == nil || e.inflight || c.ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		res := <-c.fetchShared(key)
		if res.Err != nil && !errors.Is(res.Err, ErrQueryCancelled) && !errors.Is(res.Err, ErrClosed) {
			c.logger.Debug().Err(res.Err).Str("key", key.String()).Msg("background refetch failed")
		}
	}()
}

func (c *Client) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if c.retryable != nil {
		return c.retryable(err)
	}
	return true
}

func retry[T any](ctx context.Context, c *Client, retries int, op func(context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !c.shouldRetry(err) {
			var zero T
			return zero, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     c.retryInterval,
			RandomizationFactor: 0.2,
			Multiplier:          2,
			MaxInterval:         30 * time.Second,
		}),
		backoff.WithMaxTries(uint(retries+1)),
	)
}

// GetQueriesData returns the data of every entry under prefix that holds a T.
func GetQueriesData[T any](c *Client, prefix Key) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []T
	for _, e := range c.matchingLocked(prefix) {
		if !e.hasData {
			continue
		}
		if v, ok := e.data.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
