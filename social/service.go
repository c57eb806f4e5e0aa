package social

import (
	"context"
	"io"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/auth"
	"github.com/openpix/openpix/blob"
	"github.com/openpix/openpix/graph"
)

// TxManager is what the coordinator needs from the graph transaction manager.
// graph.Store satisfies it; tests install a fake.
type TxManager interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Graph(ctx context.Context, useTransaction bool) (graph.Runner, error)
}

// BlobStore uploads and removes media objects. blob.Store satisfies it.
type BlobStore interface {
	Upload(ctx context.Context, file io.Reader, key, ownerID, ext string) (blob.UploadResult, error)
	Remove(ctx context.Context, url string) error
}

// Authorizer validates a session token against the subject an operation
// claims to act for. A nil-claims result means "valid token, wrong subject".
type Authorizer interface {
	VerifyJWT(token string, subjectID string) (*auth.Claims, error)
}

// Deps wires a Service. Graph, Index and Cache are required; Blobs is
// required only for post creation; Auth is required for owner-checked
// operations; Telemetry defaults to a no-op sink.
type Deps struct {
	Graph     TxManager
	Index     openpix.Indexer
	Cache     openpix.Cache
	Blobs     BlobStore
	Auth      Authorizer
	Telemetry openpix.Telemetry
}

// Service hosts the mutating operations. One instance is shared across
// requests; the graph transaction inside each operation is single-owner.
type Service struct {
	graph TxManager
	index openpix.Indexer
	cache openpix.Cache
	blobs BlobStore
	auth  Authorizer
	tel   openpix.Telemetry
}

// NewService builds a Service from explicitly constructed store clients.
func NewService(deps Deps) *Service {
	tel := deps.Telemetry
	if tel == nil {
		tel = openpix.NopTelemetry{}
	}
	return &Service{
		graph: deps.Graph,
		index: deps.Index,
		cache: deps.Cache,
		blobs: deps.Blobs,
		auth:  deps.Auth,
		tel:   tel,
	}
}

// authorize short-circuits an operation before any store is touched when the
// token does not belong to subjectID.
func (s *Service) authorize(token, subjectID string) error {
	if s.auth == nil {
		return nil
	}
	claims, err := s.auth.VerifyJWT(token, subjectID)
	if err != nil || claims == nil {
		return openpix.Error{Code: openpix.AuthorizationFailure, Err: errPermission, UserData: subjectID}
	}
	return nil
}
