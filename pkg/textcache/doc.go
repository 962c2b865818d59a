/*
Package textcache persists compiled corpus text with a time-to-live and a
tiered size-reduction strategy for quota overflow.

A Manager wraps a Store implementation (SQLite, Redis, or in-memory) and
handles entry serialization, freshness checks with stale-entry eviction, and
the ordered chain of line-sampling reductions applied when a payload exceeds
the configured size limit. Caching is strictly best-effort: a Put that fails
after every reduction reports ErrQuotaExceeded and nothing else.
*/
package textcache
