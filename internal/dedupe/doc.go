// Package dedupe remembers which record an idempotency key created, for a
// bounded time, so that retried writes can return the original record
// instead of inserting a duplicate.
package dedupe
