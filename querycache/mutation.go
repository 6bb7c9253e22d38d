package querycache

import (
	"context"
	"sync/atomic"
)

// MutationOptions mirrors the optimistic-update lifecycle: OnMutate applies
// optimistic data and returns the snapshots to roll back to, which Mutate
// restores before OnError runs.
type MutationOptions[V, R any] struct {
	MutationFn func(ctx context.Context, vars V) (R, error)
	OnMutate   func(ctx context.Context, vars V) ([]Snapshot, error)
	OnSuccess  func(ctx context.Context, result R, vars V)
	OnError    func(ctx context.Context, err error, vars V)
	OnSettled  func(ctx context.Context, result R, err error, vars V)
	// Retries overrides the client default; it is capped at MaxMutationRetries.
	Retries *int
}

// Mutate runs one mutation through its lifecycle callbacks.
func Mutate[V, R any](ctx context.Context, c *Client, opts MutationOptions[V, R], vars V) (R, error) {
	var zero R

	var snaps []Snapshot
	if opts.OnMutate != nil {
		s, err := opts.OnMutate(ctx, vars)
		if err != nil {
			settle(ctx, opts, zero, err, vars)
			return zero, err
		}
		snaps = s
	}

	retries := c.mutationRetries
	if opts.Retries != nil {
		retries = min(max(*opts.Retries, 0), MaxMutationRetries)
	}

	result, err := retry(ctx, c, retries, func(ctx context.Context) (R, error) {
		return opts.MutationFn(ctx, vars)
	})
	if err != nil {
		if len(snaps) > 0 {
			c.Restore(snaps)
		}
		settle(ctx, opts, zero, err, vars)
		return zero, err
	}

	if opts.OnSuccess != nil {
		opts.OnSuccess(ctx, result, vars)
	}
	if opts.OnSettled != nil {
		opts.OnSettled(ctx, result, nil, vars)
	}
	return result, nil
}

func settle[V, R any](ctx context.Context, opts MutationOptions[V, R], zero R, err error, vars V) {
	if opts.OnError != nil {
		opts.OnError(ctx, err, vars)
	}
	if opts.OnSettled != nil {
		opts.OnSettled(ctx, zero, err, vars)
	}
}

// Mutation is a reusable mutation with a pending counter, the Go shape of
// a mutation hook.
type Mutation[V, R any] struct {
	c       *Client
	opts    MutationOptions[V, R]
	pending atomic.Int32
}

func NewMutation[V, R any](c *Client, opts MutationOptions[V, R]) *Mutation[V, R] {
	return &Mutation[V, R]{c: c, opts: opts}
}

// MutateAsync runs the mutation and blocks until it settles.
func (m *Mutation[V, R]) MutateAsync(ctx context.Context, vars V) (R, error) {
	m.pending.Add(1)
	defer m.pending.Add(-1)
	return Mutate(ctx, m.c, m.opts, vars)
}

// Mutate runs the mutation in the background and reports through done,
// which may be nil. Background mutations are waited for by Client.Close.
func (m *Mutation[V, R]) Mutate(ctx context.Context, vars V, done func(R, error)) {
	m.pending.Add(1)
	m.c.wg.Add(1)
	go func() {
		defer m.c.wg.Done()
		defer m.pending.Add(-1)
		result, err := Mutate(ctx, m.c, m.opts, vars)
		if done != nil {
			done(result, err)
		}
	}()
}

func (m *Mutation[V, R]) IsPending() bool {
	return m.pending.Load() > 0
}
