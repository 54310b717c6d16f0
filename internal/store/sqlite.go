// Package store implements the Store Adapter (spec.md §4.9): a typed
// interface over a SQLite-backed relational store, disciplined for a
// single writer and many concurrent readers. Adapted from the teacher's
// internal/storage/sqlite.go (WAL journal mode, foreign keys, embedded
// schema, single-writer connection pool).
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the Store Adapter. It owns one writer-exclusive *sql.DB (pool
// size 1) and a separate bounded reader pool, with a fairness lock that
// gives a waiting writer priority over new readers (spec.md §4.9).
type Store struct {
	writer *sql.DB
	reader *sql.DB

	fairness  *fairnessLock
	writeWait time.Duration
}

// Open creates or opens the database at path, applying the embedded schema
// and configuring the dual writer/reader pool.
func Open(path string, maxReaderConns int, writeWait time.Duration) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", path)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening writer connection: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)

	if err := writer.Ping(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	if _, err := writer.Exec(string(schema)); err != nil {
		writer.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("opening reader pool: %w", err)
	}
	if maxReaderConns <= 0 {
		maxReaderConns = 4
	}
	reader.SetMaxOpenConns(maxReaderConns)

	if writeWait <= 0 {
		writeWait = 250 * time.Millisecond
	}

	return &Store{
		writer:    writer,
		reader:    reader,
		fairness:  newFairnessLock(),
		writeWait: writeWait,
	}, nil
}

// Close releases both connection pools.
func (s *Store) Close() error {
	readerErr := s.reader.Close()
	writerErr := s.writer.Close()
	if writerErr != nil {
		return writerErr
	}
	return readerErr
}

// withWriteTx runs fn inside a single writer transaction, taking the
// fairness lock's write priority first so in-flight long reads do not
// starve the Loader (spec.md §4.9).
func (s *Store) withWriteTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.fairness.acquireWrite(s.writeWait)
	defer s.fairness.releaseWrite()

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return &BusyError{Err: err}
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// withReadTx runs fn against the reader pool without exclusive access.
func (s *Store) withReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.fairness.acquireRead()
	defer s.fairness.releaseRead()

	tx, err := s.reader.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return fn(tx)
}

// BusyError wraps a failure to acquire the writer (spec.md §7 StoreBusy).
// withWriteTx returns it on the first failed BeginTx; nothing in the Store
// Adapter or the Loader retries it.
type BusyError struct{ Err error }

func (e *BusyError) Error() string { return fmt.Sprintf("store busy: %v", e.Err) }
func (e *BusyError) Unwrap() error { return e.Err }

// FatalError wraps an unrecoverable store failure (spec.md §7 StoreFatal).
type FatalError struct{ Err error }

func (e *FatalError) Error() string { return fmt.Sprintf("store fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// fairnessLock gives write acquisition priority over new read acquisitions
// as soon as a writer is waiting (spec.md §4.9): sync.RWMutex blocks new
// RLock calls while a Lock call is pending. acquireWrite does not use its
// wait argument, so there is no Twait delay before the handoff.
type fairnessLock struct {
	mu         sync.RWMutex
	writerWant sync.Mutex
}

func newFairnessLock() *fairnessLock {
	return &fairnessLock{}
}

func (f *fairnessLock) acquireWrite(wait time.Duration) {
	f.writerWant.Lock()
	f.mu.Lock()
}

func (f *fairnessLock) releaseWrite() {
	f.mu.Unlock()
	f.writerWant.Unlock()
}

func (f *fairnessLock) acquireRead() {
	f.mu.RLock()
}

func (f *fairnessLock) releaseRead() {
	f.mu.RUnlock()
}
