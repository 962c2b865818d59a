package textcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ErrQuotaExceeded is returned by Manager.Put when the payload cannot be
// stored even after every reduction tier and an eviction pass. Callers treat
// it as a best-effort failure; it never blocks text generation.
var ErrQuotaExceeded = errors.New("textcache: payload exceeds size limit after all reductions")

const (
	// DefaultSizeLimit is the serialized-entry byte limit (5 MB). The value
	// is a preserved constant from the original tooling, configurable but
	// not second-guessed.
	DefaultSizeLimit = 5 << 20
	// DefaultEvictionWindow is how old an entry must be before the overflow
	// path may evict it to free space.
	DefaultEvictionWindow = 24 * time.Hour
)

// Stats summarizes a cached corpus. Reduced tiers recompute it so the
// numbers always describe the stored text.
type Stats struct {
	Lines int `json:"lines"`
	Chars int `json:"chars"`
}

// Entry is the cached corpus payload. Timestamp is the moment the text was
// fetched; an entry is fresh while now-Timestamp is under the caller's TTL.
type Entry struct {
	Text      string    `json:"text"`
	Stats     *Stats    `json:"stats,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// reduction is one step of the overflow degradation chain: keep every
// divisor-th line of the original text. The chain is ordered from no
// reduction to the most aggressive tier and tried in sequence.
type reduction struct {
	name    string
	divisor int
}

var reductions = []reduction{
	{name: "full", divisor: 1},
	{name: "quarter", divisor: 4},
	{name: "tenth", divisor: 10},
}

// Manager coordinates entry serialization, freshness, and quota tiering over
// an injected Store.
type Manager struct {
	store       Store
	limit       int
	evictWindow time.Duration
	logger      *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSizeLimit overrides the serialized-entry byte limit.
func WithSizeLimit(limit int) ManagerOption {
	return func(m *Manager) {
		if limit > 0 {
			m.limit = limit
		}
	}
}

// WithEvictionWindow overrides how old entries must be before the overflow
// path evicts them.
func WithEvictionWindow(window time.Duration) ManagerOption {
	return func(m *Manager) {
		if window > 0 {
			m.evictWindow = window
		}
	}
}

// NewManager creates a Manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		limit:       DefaultSizeLimit,
		evictWindow: DefaultEvictionWindow,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLogger sets the logger for the Manager. By default, all logs are discarded.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Get reads the entry under key. Entries older than maxAge are treated as a
// miss and evicted as a side effect, as are payloads that fail to decode.
func (m *Manager) Get(ctx context.Context, key string, maxAge time.Duration) (*Entry, error) {
	data, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("reading cache entry %q: %w", key, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.logger.WarnContext(ctx, "Evicting undecodable cache entry",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		_ = m.store.Delete(ctx, key)
		return nil, ErrNotFound
	}

	if maxAge > 0 && time.Since(entry.Timestamp) >= maxAge {
		m.logger.DebugContext(ctx, "Evicting stale cache entry",
			slog.String("key", key),
			slog.Time("stored", entry.Timestamp),
		)
		_ = m.store.Delete(ctx, key)
		return nil, ErrNotFound
	}

	return &entry, nil
}

// Put stores the entry under key, walking the reduction chain until a tier's
// serialized form fits the size limit. A store-level rejection triggers one
// eviction pass over entries older than the eviction window followed by a
// single retry. When every avenue fails the error wraps ErrQuotaExceeded;
// the entry is simply not cached.
func (m *Manager) Put(ctx context.Context, key string, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	for _, tier := range reductions {
		candidate := reduceEntry(entry, tier.divisor)
		data, err := json.Marshal(candidate)
		if err != nil {
			return fmt.Errorf("serializing cache entry: %w", err)
		}

		if len(data) > m.limit {
			m.logger.DebugContext(ctx, "Cache tier still over size limit",
				slog.String("key", key),
				slog.String("tier", tier.name),
				slog.Int("size", len(data)),
				slog.Int("limit", m.limit),
			)
			continue
		}

		if err := m.putWithEviction(ctx, key, data, candidate.Timestamp); err != nil {
			return err
		}

		m.logger.InfoContext(ctx, "Cache entry stored",
			slog.String("key", key),
			slog.String("tier", tier.name),
			slog.Int("size", len(data)),
		)
		return nil
	}

	// Even the most reduced tier exceeds the limit. Drop aged entries as
	// housekeeping and report the best-effort failure.
	if evicted, err := m.store.EvictOlderThan(ctx, time.Now().Add(-m.evictWindow)); err == nil && evicted > 0 {
		m.logger.InfoContext(ctx, "Evicted aged cache entries",
			slog.Int("evicted", evicted),
		)
	}
	return fmt.Errorf("%w: key %q", ErrQuotaExceeded, key)
}

// putWithEviction writes the payload, and on a store rejection evicts aged
// entries once and retries.
func (m *Manager) putWithEviction(ctx context.Context, key string, data []byte, storedAt time.Time) error {
	err := m.store.Put(ctx, key, data, storedAt)
	if err == nil {
		return nil
	}

	evicted, evictErr := m.store.EvictOlderThan(ctx, time.Now().Add(-m.evictWindow))
	if evictErr != nil {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, errors.Join(err, evictErr))
	}
	m.logger.InfoContext(ctx, "Store rejected write, retrying after eviction",
		slog.String("key", key),
		slog.Int("evicted", evicted),
		slog.String("error", err.Error()),
	)

	if err := m.store.Put(ctx, key, data, storedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return nil
}

// Delete removes the entry under key.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.store.Delete(ctx, key)
}

// reduceEntry applies one line-sampling tier, keeping every divisor-th line
// of the original text and recomputing stats to match.
func reduceEntry(entry Entry, divisor int) Entry {
	if divisor <= 1 {
		return entry
	}

	lines := strings.Split(entry.Text, "\n")
	kept := make([]string, 0, len(lines)/divisor+1)
	for i, line := range lines {
		if i%divisor == 0 {
			kept = append(kept, line)
		}
	}
	text := strings.Join(kept, "\n")

	reduced := Entry{Text: text, Timestamp: entry.Timestamp}
	if entry.Stats != nil {
		reduced.Stats = &Stats{Lines: len(kept), Chars: len(text)}
	}
	return reduced
}
