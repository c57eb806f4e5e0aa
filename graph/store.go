// Package graph owns the connection to the graph store and the explicit
// transaction every mutating traversal must run under. One Store instance is
// shared per process; one transaction may be active at a time per logical
// operation, which matches the single-owner model of the write coordinator.
package graph

import (
	"context"
	"fmt"
	log "log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/openpix/openpix"
)

// Runner executes one Cypher traversal and returns its fully-buffered records.
// Both the transaction-bound handle and the plain read handle satisfy it, as
// do test fakes.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) ([]*db.Record, error)
}

// Store is the graph transaction manager. It is not safe for concurrent
// mutating use; each logical request owns the active transaction exclusively.
type Store struct {
	options Options
	driver  neo4j.DriverWithContext
	session neo4j.SessionWithContext
	tx      neo4j.ExplicitTransaction
}

// NewStore returns an unconnected Store. Call Connect before Begin.
func NewStore(options Options) *Store {
	return &Store{options: options}
}

// Connect establishes the underlying driver. It is idempotent: when already
// connected it tears down the existing driver and re-establishes.
func (s *Store) Connect(ctx context.Context) error {
	if s.driver != nil {
		s.teardown(ctx)
	}
	driver, err := openDriver(ctx, s.options)
	if err != nil {
		log.Error(fmt.Sprintf("graph connect to %s failed: %v", s.options.URI, err))
		return err
	}
	s.driver = driver
	return nil
}

// Close releases the session and driver.
func (s *Store) Close(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	s.teardown(ctx)
	return nil
}

func (s *Store) teardown(ctx context.Context) {
	if s.tx != nil {
		s.tx.Close(ctx)
		s.tx = nil
	}
	if s.session != nil {
		s.session.Close(ctx)
		s.session = nil
	}
	closeDriver(ctx, s.driver)
	s.driver = nil
}

// Begin starts a new transaction. It fails with NoConnection when Connect has
// not been called. Nested transactions are not supported.
func (s *Store) Begin(ctx context.Context) error {
	if s.driver == nil {
		return openpix.Error{Code: openpix.NoConnection, Err: fmt.Errorf("graph store is not connected")}
	}
	if s.tx != nil {
		return fmt.Errorf("a transaction is already in progress")
	}
	if s.session == nil {
		s.session = s.driver.NewSession(ctx, neo4j.SessionConfig{
			DatabaseName: s.options.Database,
			AccessMode:   neo4j.AccessModeWrite,
		})
	}
	tx, err := s.session.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

// Commit commits the active transaction. It fails with NoTransactionInProgress
// when none is active. The active transaction reference is cleared afterward
// regardless of outcome.
func (s *Store) Commit(ctx context.Context) error {
	if s.tx == nil {
		return openpix.Error{Code: openpix.NoTransactionInProgress, Err: fmt.Errorf("commit without an active transaction")}
	}
	err := s.tx.Commit(ctx)
	s.tx.Close(ctx)
	s.tx = nil
	return err
}

// Rollback rolls back the active transaction if one exists. It is a no-op when
// none is active, so error handlers can call it unconditionally.
func (s *Store) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback(ctx)
	s.tx.Close(ctx)
	s.tx = nil
	return err
}

// HasTransaction reports whether a transaction is active.
func (s *Store) HasTransaction() bool {
	return s.tx != nil
}

// Graph returns a traversal handle bound either to the ambient transaction
// (useTransaction true) or to the plain connection for read-only convenience.
// The plain path reconnects transparently when the store is disconnected.
func (s *Store) Graph(ctx context.Context, useTransaction bool) (Runner, error) {
	if useTransaction {
		if s.tx == nil {
			return nil, openpix.Error{Code: openpix.NoTransactionInProgress, Err: fmt.Errorf("no transaction bound to this handle")}
		}
		return txRunner{tx: s.tx}, nil
	}
	if s.driver == nil {
		if err := s.Connect(ctx); err != nil {
			return nil, openpix.Error{Code: openpix.NoConnection, Err: err}
		}
	}
	return sessionRunner{driver: s.driver, database: s.options.Database}, nil
}

type txRunner struct {
	tx neo4j.ExplicitTransaction
}

func (r txRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]*db.Record, error) {
	result, err := r.tx.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return result.Collect(ctx)
}

type sessionRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

func (r sessionRunner) Run(ctx context.Context, cypher string, params map[string]any) ([]*db.Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, r.driver, cypher, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(r.database))
	if err != nil {
		return nil, err
	}
	return result.Records, nil
}
