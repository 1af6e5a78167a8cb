// Package storage defines the persistence contract for the tenancy engine.
//
// The engine assumes a transactional document store: per-document get/put by
// id, plus a transaction primitive that reads a bounded set of documents and
// commits a bounded set of writes atomically with optimistic-concurrency
// abort semantics. The SQLite implementation lives in the sqlite subpackage.
//
// Access control is realized through interface narrowing: only the
// coordinators receive a Store (and with it a Tx); every other component is
// handed a Reader and cannot touch the relationship arrays.
//
// # Error Types
//
//   - ErrNotFound: a requested record is missing.
//   - ErrConflict: a version-checked write lost to a concurrent transaction.
//   - ErrAlreadyExists: a uniqueness violation on insert.
package storage
