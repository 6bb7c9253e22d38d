package querycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultGCTime          = 5 * time.Minute
	DefaultQueryRetries    = 3
	DefaultMutationRetries = 0
	MaxMutationRetries     = 1
	DefaultRetryInterval   = 200 * time.Millisecond
)

var (
	ErrQueryDisabled  = errors.New("query is disabled")
	ErrQueryCancelled = errors.New("query was cancelled")
	ErrClosed         = errors.New("query cache is closed")
)

type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusError
)

type fetchFunc func(ctx context.Context) (any, error)

type entry struct {
	key Key

	data      any
	hasData   bool
	err       error
	status    Status
	updatedAt time.Time
	staleAt   time.Time
	staleTime time.Duration

	fetch   fetchFunc
	retries int

	observers int
	idleSince time.Time

	// fetchGen changes whenever an in-flight result must be discarded.
	fetchGen int
	cancel   context.CancelFunc
	inflight bool
}

// Client is a keyed cache of query results with request de-duplication,
// staleness windows, background refetch and optimistic update support.
type Client struct {
	gcTime          time.Duration
	queryRetries    int
	mutationRetries int
	retryInterval   time.Duration
	retryable       func(error) bool
	nowFunc         func() time.Time
	logger          zerolog.Logger
	metrics         *metrics

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Client)

func WithGCTime(d time.Duration) Option {
	return func(c *Client) {
		c.gcTime = d
	}
}

// WithQueryRetries sets how many times a failed query fetch is retried.
func WithQueryRetries(n int) Option {
	return func(c *Client) {
		c.queryRetries = n
	}
}

// WithMutationRetries sets the default mutation retry count, capped at one.
func WithMutationRetries(n int) Option {
	return func(c *Client) {
		c.mutationRetries = n
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithRetryPredicate limits retries to errors for which fn returns true.
func WithRetryPredicate(fn func(error) bool) Option {
	return func(c *Client) {
		c.retryable = fn
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Client) {
		c.nowFunc = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.metrics = newMetrics(reg)
	}
}

func New(options ...Option) *Client {
	c := &Client{
		gcTime:          DefaultGCTime,
		queryRetries:    DefaultQueryRetries,
		mutationRetries: DefaultMutationRetries,
		retryInterval:   DefaultRetryInterval,
		nowFunc:         time.Now,
		logger:          log.Logger,
		entries:         make(map[string]*entry),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.queryRetries < 0 {
		c.queryRetries = 0
	}
	if c.mutationRetries < 0 {
		c.mutationRetries = 0
	}
	if c.mutationRetries > MaxMutationRetries {
		c.mutationRetries = MaxMutationRetries
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c
}

// Close cancels background fetches and waits for them to return.
func (c *Client) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Client) now() time.Time {
	return c.nowFunc()
}

// entryLocked returns the entry for key, creating an empty one. c.mu must be held.
func (c *Client) entryLocked(key Key) *entry {
	h := key.String()
	e, ok := c.entries[h]
	if !ok {
		e = &entry{key: key, idleSince: c.now()}
		c.entries[h] = e
		c.metrics.size(len(c.entries))
	}
	return e
}

func (c *Client) matchingLocked(prefix Key) []*entry {
	var out []*entry
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Observe registers an observer on key. Entries with observers are never
// garbage collected and are refetched when invalidated.
func (c *Client) Observe(key Key) (release func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.observers++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			e.observers--
			if e.observers <= 0 {
				e.observers = 0
				e.idleSince = c.now()
			}
		})
	}
}

// Observers reports the number of observers registered on key.
func (c *Client) Observers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok {
		return e.observers
	}
	return 0
}

// GC evicts entries that have had no observers for the GC window and no
// fetch in flight. It returns the number of evicted entries.
func (c *Client) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for h, e := range c.entries {
		if e.observers > 0 || e.inflight {
			continue
		}
		if now.Sub(e.idleSince) >= c.gcTime {
			delete(c.entries, h)
			evicted++
		}
	}
	c.metrics.size(len(c.entries))
	return evicted
}

// RunGC sweeps every interval until ctx is done or the client is closed.
func (c *Client) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if n := c.GC(); n > 0 {
				c.logger.Debug().Int("evicted", n).Msg("query cache gc")
			}
		}
	}
}

// InvalidateQueries marks every entry under prefix stale. Observed entries
// that know how to fetch are refetched in the background.
func (c *Client) InvalidateQueries(prefix Key) {
	c.mu.Lock()
	var refetch []*entry
	for _, e := range c.matchingLocked(prefix) {
		e.staleAt = time.Time{}
		if e.observers > 0 && e.fetch != nil {
			refetch = append(refetch, e)
		}
	}
	c.mu.Unlock()

	for _, e := range refetch {
		c.background(e.key)
	}
}

// CancelQueries aborts in-flight fetches under prefix. Their results are
// discarded and waiting callers receive ErrQueryCancelled.
func (c *Client) CancelQueries(prefix Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.matchingLocked(prefix) {
		if !e.inflight {
			continue
		}
		e.fetchGen++
		e.inflight = false
		if e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		c.group.Forget(e.key.String())
	}
}

// RemoveQueries cancels and drops every entry under prefix. An empty prefix
// clears the whole cache.
func (c *Client) RemoveQueries(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for h, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.inflight {
			e.fetchGen++
			e.inflight = false
			if e.cancel != nil {
				e.cancel()
			}
			c.group.Forget(h)
		}
		delete(c.entries, h)
		removed++
	}
	c.metrics.size(len(c.entries))
	return removed
}

// State describes an entry for callers that need more than the data.
type State struct {
	Status    Status
	Err       error
	UpdatedAt time.Time
	IsStale   bool
	Fetching  bool
}

func (c *Client) QueryState(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return State{}, false
	}
	return State{
		Status:    e.status,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		IsStale:   !c.now().Before(e.staleAt),
		Fetching:  e.inflight,
	}, true
}

// Snapshot is a verbatim copy of one entry's data, used to roll back an
// optimistic update.
type Snapshot struct {
	key       Key
	existed   bool
	data      any
	hasData   bool
	status    Status
	err       error
	updatedAt time.Time
	staleAt   time.Time
}

func (s Snapshot) Key() Key {
	return s.key
}

// SnapshotQueries captures every entry under prefix. An exact key with no
// entry yet is captured as absent so a restore removes optimistic data.
func (c *Client) SnapshotQueries(prefix Key) []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches := c.matchingLocked(prefix)
	if len(matches) == 0 {
		return []Snapshot{{key: prefix}}
	}
	out := make([]Snapshot, 0, len(matches))
	for _, e := range matches {
		out = append(out, Snapshot{
			key:       e.key,
			existed:   true,
			data:      e.data,
			hasData:   e.hasData,
			status:    e.status,
			err:       e.err,
			updatedAt: e.updatedAt,
			staleAt:   e.staleAt,
		})
	}
	return out
}

// Restore puts snapshots back exactly as they were captured.
func (c *Client) Restore(snaps []Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range snaps {
		if !s.existed {
			if e, ok := c.entries[s.key.String()]; ok {
				e.data, e.hasData, e.err, e.status = nil, false, nil, StatusPending
				e.updatedAt, e.staleAt = time.Time{}, time.Time{}
			}
			continue
		}
		e := c.entryLocked(s.key)
		e.data = s.data
		e.hasData = s.hasData
		e.status = s.status
		e.err = s.err
		e.updatedAt = s.updatedAt
		e.staleAt = s.staleAt
	}
}

func (c *Client) setDataLocked(e *entry, data any) {
	now := c.now()
	e.data = data
	e.hasData = true
	e.err = nil
	e.status = StatusSuccess
	e.updatedAt = now
	e.staleAt = now.Add(e.staleTime)
}
