package social

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/graph"
)

var (
	errPermission = errors.New("permission denied")

	// errAbort requests a deliberate rollback that is not a failure; dry-run
	// account creation returns it after validating inside the transaction.
	errAbort = errors.New("abort transaction")
)

// compensation semantically undoes a side effect taken outside the graph's
// rollback protection, e.g. deleting an index document inserted before the
// transaction opened.
type compensation struct {
	name string
	run  func(ctx context.Context) error
}

// runInTransaction is the shared saga shape: begin a graph transaction, run
// fn with the transaction-bound handle, commit. Any failure — fn, commit,
// even begin — triggers one unconditional rollback (safe when no transaction
// is active) followed by the registered compensations, and is translated into
// a domain error that does not leak store internals. fn returning errAbort
// rolls back and reports success.
func (s *Service) runInTransaction(ctx context.Context, op string, fn func(ctx context.Context, g graph.Runner) error, comps ...compensation) error {
	if err := s.graph.Begin(ctx); err != nil {
		return s.fail(ctx, op, err, comps)
	}
	g, err := s.graph.Graph(ctx, true)
	if err != nil {
		return s.fail(ctx, op, err, comps)
	}
	if err := fn(ctx, g); err != nil {
		if errors.Is(err, errAbort) {
			if rbErr := s.graph.Rollback(ctx); rbErr != nil {
				return s.fail(ctx, op, rbErr, comps)
			}
			return nil
		}
		return s.fail(ctx, op, err, comps)
	}
	if err := s.graph.Commit(ctx); err != nil {
		return s.fail(ctx, op, err, comps)
	}
	return nil
}

// fail is the single catch point of a saga: log with operation context, roll
// back unconditionally, run compensations, translate.
func (s *Service) fail(ctx context.Context, op string, cause error, comps []compensation) error {
	log.Error(fmt.Sprintf("%s failed: %v", op, cause))
	if err := s.graph.Rollback(ctx); err != nil {
		// A rollback failure after a destructive step means the stores may
		// now disagree; log it apart from the operation failure.
		log.Error(fmt.Sprintf("%s rollback failed: %v", op,
			openpix.Error{Code: openpix.CompensationFailure, Err: err}))
	}
	for _, c := range comps {
		if err := c.run(ctx); err != nil {
			log.Error(fmt.Sprintf("%s compensation %s failed: %v", op, c.name,
				openpix.Error{Code: openpix.CompensationFailure, Err: err}))
		}
	}
	return translate(op, cause)
}

// translate maps an internal failure to the single coarse error the caller
// sees. Validation and authorization errors pass through untouched; store
// failures keep their code but shed their detail.
func translate(op string, cause error) error {
	code := openpix.CodeOf(cause)
	switch code {
	case openpix.ValidationFailure, openpix.AuthorizationFailure:
		return cause
	case openpix.Unknown:
		return openpix.Error{Code: openpix.Unknown, Err: fmt.Errorf("%s failed", op)}
	}
	return openpix.Error{Code: code, Err: fmt.Errorf("%s failed", op)}
}

// indexFailure tags an exhausted-retries index error so translate keeps the
// taxonomy without leaking engine detail.
func indexFailure(err error) error {
	if err == nil {
		return nil
	}
	return openpix.Error{Code: openpix.IndexOperationFailed, Err: err}
}
