package stash

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/webstash/webstash/internal/hoststore"
)

// evictionLoadConcurrency caps concurrent record loads during an
// eviction scan.
const evictionLoadConcurrency = 8

// Bounded is the capacity-limited backend: envelope bookkeeping over a
// URL-keyed ObjectStore. When a write pushes the entry count over the
// maximum, the least-recently-accessed entries are evicted until the
// store is back at the limit.
type Bounded struct {
	store  hoststore.ObjectStore
	max    int
	logger *log.Logger
}

// NewBounded wraps an ObjectStore with the given entry capacity.
func NewBounded(store hoststore.ObjectStore, max int, logger *log.Logger) *Bounded {
	if max <= 0 {
		max = DefaultMaxEntries
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Bounded{store: store, max: max, logger: logger}
}

// Read returns the value JSON stored under url. Raw-kind records are
// returned as-is with no expiry check; envelope records are expiry
// checked, with expired entries deleted and reported as absent.
// AccessedAt is not refreshed on read: eviction order follows the last
// write, not the last read.
func (b *Bounded) Read(ctx context.Context, url string) ([]byte, bool, error) {
	rec, ok, err := b.store.Match(ctx, url)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if rec.Header[headerKind] == kindRaw {
		return rec.Body, true, nil
	}

	env, err := decodeEnvelope(rec.Body)
	if err != nil {
		return nil, false, err
	}

	if env.expired(time.Now()) {
		if _, err := b.store.Delete(ctx, url); err != nil {
			return nil, false, fmt.Errorf("failed to remove expired entry: %w", err)
		}
		return nil, false, nil
	}

	return env.Value, true, nil
}

// Write stores value under url with the given absolute expiration, then
// evicts least-recently-accessed entries if the store went over
// capacity.
func (b *Bounded) Write(ctx context.Context, url string, value any, expiration time.Time) error {
	env, err := newEnvelope(value, expiration)
	if err != nil {
		return err
	}

	body, err := env.encode()
	if err != nil {
		return err
	}

	rec := hoststore.Record{
		Body:   body,
		Header: map[string]string{headerKind: kindEnvelope},
	}
	return b.putRecord(ctx, url, rec)
}

// putRecord stores rec and enforces the capacity limit.
func (b *Bounded) putRecord(ctx context.Context, url string, rec hoststore.Record) error {
	if err := b.store.Put(ctx, url, rec); err != nil {
		return err
	}

	keys, err := b.store.Keys(ctx)
	if err != nil {
		return fmt.Errorf("failed to count entries: %w", err)
	}
	if len(keys) > b.max {
		return b.evict(ctx, keys)
	}
	return nil
}

// Delete removes the entry under url. An absent target is not an
// error.
func (b *Bounded) Delete(ctx context.Context, url string) error {
	_, err := b.store.Delete(ctx, url)
	return err
}

// Clear deletes the entire store.
func (b *Bounded) Clear(ctx context.Context) error {
	return b.store.Destroy(ctx)
}

// Len returns the current live entry count.
func (b *Bounded) Len(ctx context.Context) (int, error) {
	keys, err := b.store.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// evictionCandidate pairs a url with its last-access stamp for
// sorting.
type evictionCandidate struct {
	url        string
	accessedAt int64
}

// evict removes the least-recently-accessed entries until the live
// count is at or under the maximum. The candidate list is computed
// once, but the live count is re-checked after every delete so writes
// racing the scan cannot make it overshoot or loop; candidates deleted
// concurrently are treated as no-ops.
func (b *Bounded) evict(ctx context.Context, keys []string) error {
	candidates := make([]*evictionCandidate, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(evictionLoadConcurrency)
	for i, url := range keys {
		g.Go(func() error {
			rec, ok, err := b.store.Match(gctx, url)
			if err != nil {
				return err
			}
			if !ok {
				// Deleted while we were scanning.
				return nil
			}

			cand := &evictionCandidate{url: url}
			if rec.Header[headerKind] == kindRaw {
				// Raw records carry their stamp in a header; a missing
				// or garbled stamp sorts them as just written.
				if ms, ok := parseMillis(rec.Header[headerAccessedAt]); ok {
					cand.accessedAt = ms
				} else {
					cand.accessedAt = time.Now().UnixMilli()
				}
			} else {
				env, err := decodeEnvelope(rec.Body)
				if err != nil {
					return err
				}
				cand.accessedAt = env.AccessedAt
			}
			candidates[i] = cand
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("eviction scan failed: %w", err)
	}

	// Ties keep the store's enumeration order.
	ordered := make([]*evictionCandidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand != nil {
			ordered = append(ordered, cand)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].accessedAt < ordered[j].accessedAt
	})

	for _, cand := range ordered {
		live, err := b.store.Keys(ctx)
		if err != nil {
			return fmt.Errorf("failed to count entries: %w", err)
		}
		if len(live) <= b.max {
			break
		}

		deleted, err := b.store.Delete(ctx, cand.url)
		if err != nil {
			return fmt.Errorf("failed to evict entry: %w", err)
		}
		if deleted {
			b.logger.Debug("evicted cache entry",
				"url", cand.url, "accessedAt", cand.accessedAt)
		}
	}
	return nil
}
