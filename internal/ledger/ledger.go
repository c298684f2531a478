// Package ledger keeps the local append-only record of code generation and
// scan attempts, with cap and retention pruning, queries, and derived stats.
// Persistence goes through the Store port; the ledger itself owns only the
// retention and derivation rules.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clubsync/presence/internal/domain"
)

// Store is the key-value persistence port backing the ledger. Get returns
// ("", nil) when the key is absent.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

const (
	historyKey    = "presence:history"
	statsCacheKey = "presence:history:stats"
)

type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortByType SortOrder = "byType"
)

func ParseSortOrder(s string) (SortOrder, bool) {
	switch SortOrder(s) {
	case SortNewest, SortOldest, SortByType:
		return SortOrder(s), true
	default:
		return "", false
	}
}

// ActionFilter widens domain.HistoryAction with "all".
type ActionFilter string

const FilterAll ActionFilter = "all"

type Config struct {
	// Cap is the maximum number of entries kept; oldest evicted first.
	Cap int
	// Retention is how long entries live before pruning.
	Retention time.Duration
}

type Ledger struct {
	store     Store
	cap       int
	retention time.Duration
	clock     func() time.Time

	// The whole list is read-modified-written under one lock. Handlers run
	// concurrently, so the single-writer assumption of a UI thread does not
	// hold here.
	mu sync.Mutex
}

func New(store Store, cfg Config, clock func() time.Time) *Ledger {
	if cfg.Cap <= 0 {
		cfg.Cap = 100
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{store: store, cap: cfg.Cap, retention: cfg.Retention, clock: clock}
}

// Append adds one record and prunes anything over cap or past retention.
func (l *Ledger) Append(ctx context.Context, entry domain.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return err
	}

	entries = append(entries, entry)
	entries = l.prune(entries)

	return l.save(ctx, entries)
}

// Query returns entries matching the action filter in the requested order.
func (l *Ledger) Query(ctx context.Context, filter ActionFilter, order SortOrder) ([]domain.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		if filter == FilterAll || filter == "" || ActionFilter(e.Action) == filter {
			out = append(out, e)
		}
	}

	switch order {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		})
	case SortByType:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Action != out[j].Action {
				return out[i].Action < out[j].Action
			}
			return out[i].RecordedAt.After(out[j].RecordedAt)
		})
	default: // SortNewest
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RecordedAt.After(out[j].RecordedAt)
		})
	}

	return out, nil
}

// Stats derives counts, success rate, and the last week of activity.
func (l *Ledger) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.HistoryStats{RecentActivity: []domain.HistoryEntry{}}
	weekAgo := l.clock().Add(-7 * 24 * time.Hour)

	recent := make([]domain.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		switch e.Action {
		case domain.ActionGenerated:
			stats.TotalGenerated++
		case domain.ActionScanned:
			stats.TotalScanned++
		}
		if e.RecordedAt.After(weekAgo) {
			recent = append(recent, e)
		}
	}

	if stats.TotalGenerated > 0 {
		stats.SuccessRate = float64(stats.TotalScanned) / float64(stats.TotalGenerated)
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].RecordedAt.After(recent[j].RecordedAt)
	})
	if len(recent) > 10 {
		recent = recent[:10]
	}
	stats.RecentActivity = recent

	// Cache is best effort; stats are cheap to rebuild from the list.
	if data, err := json.Marshal(stats); err == nil {
		_ = l.store.Set(ctx, statsCacheKey, string(data))
	}

	return stats, nil
}

// Clear empties the ledger. Explicit user action only.
func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(ctx, []domain.HistoryEntry{})
}

// SeenScan reports whether a scanned entry for the same subject and tag was
// recorded after since. This is the replay-detection lookup.
func (l *Ledger) SeenScan(ctx context.Context, subjectID, integrityTag string, since time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.load(ctx)
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		if e.Action != domain.ActionScanned || e.Payload == nil {
			continue
		}
		if e.Payload.SubjectID == subjectID && e.Payload.IntegrityTag == integrityTag && e.RecordedAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (l *Ledger) load(ctx context.Context) ([]domain.HistoryEntry, error) {
	raw, err := l.store.Get(ctx, historyKey)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var entries []domain.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

func (l *Ledger) save(ctx context.Context, entries []domain.HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := l.store.Set(ctx, historyKey, string(data)); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	// A stale stats cache is worse than no cache.
	_ = l.store.Set(ctx, statsCacheKey, "")
	return nil
}

func (l *Ledger) prune(entries []domain.HistoryEntry) []domain.HistoryEntry {
	cutoff := l.clock().Add(-l.retention)

	kept := entries[:0]
	for _, e := range entries {
		if e.RecordedAt.After(cutoff) {
			kept = append(kept, e)
		}
	}

	if len(kept) > l.cap {
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].RecordedAt.Before(kept[j].RecordedAt)
		})
		kept = kept[len(kept)-l.cap:]
	}

	return kept
}
