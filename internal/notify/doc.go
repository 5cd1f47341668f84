// Package notify implements the durable at-least-once notification store.
//
// Pending messages live in memory and are mirrored to a single JSON snapshot
// file on every mutation. Snapshot writes are funneled through a serial task
// queue so the file has exactly one logical writer; the on-disk state always
// converges to the most recently committed in-memory state, even though
// individual writes complete asynchronously.
//
// A message leaves the store only through an explicit client acknowledgment
// or the periodic staleness purge. Successful transmission alone never
// removes anything - that is what makes delivery at-least-once.
package notify
