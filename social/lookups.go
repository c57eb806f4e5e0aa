package social

import (
	"context"
	"fmt"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/graph"
)

// PostOwnerLookup is the decoded shape of the ownership query: the post's
// vertex id, its index document id, and the owning user's id.
type PostOwnerLookup struct {
	PostID  string
	DocID   string
	OwnerID string
}

const postOwnerQuery = `
MATCH (p:Post {id: $postId})-[:OWNED_BY]->(u:User)
RETURN p.id AS postId, p.esId AS esId, u.id AS ownerId`

// lookupPostOwner resolves the owner and join key of a post, rejecting
// malformed records at the store boundary.
func lookupPostOwner(ctx context.Context, g graph.Runner, postID string) (PostOwnerLookup, error) {
	records, err := g.Run(ctx, postOwnerQuery, map[string]any{"postId": postID})
	if err != nil {
		return PostOwnerLookup{}, err
	}
	if len(records) == 0 {
		return PostOwnerLookup{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("post %s not found", postID),
		}
	}
	rec := records[0]
	var lookup PostOwnerLookup
	if lookup.PostID, err = graph.String(rec, "postId"); err != nil {
		return PostOwnerLookup{}, err
	}
	if lookup.DocID, err = graph.String(rec, "esId"); err != nil {
		return PostOwnerLookup{}, err
	}
	if lookup.OwnerID, err = graph.String(rec, "ownerId"); err != nil {
		return PostOwnerLookup{}, err
	}
	return lookup, nil
}

const descendantCommentsQuery = `
MATCH (p:Post {id: $postId})-[:HAS_COMMENT*]->(c:Comment)
RETURN collect(DISTINCT c.id) AS ids`

// lookupDescendantComments collects the ids of every comment under a post,
// across the whole reply tree.
func lookupDescendantComments(ctx context.Context, g graph.Runner, postID string) ([]string, error) {
	records, err := g.Run(ctx, descendantCommentsQuery, map[string]any{"postId": postID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return graph.Strings(records[0], "ids")
}

const userByIDQuery = `
MATCH (u:User {id: $userId})
RETURN u`

// lookupUser fetches a user vertex by id.
func lookupUser(ctx context.Context, g graph.Runner, userID string) (graph.Vertex, error) {
	records, err := g.Run(ctx, userByIDQuery, map[string]any{"userId": userID})
	if err != nil {
		return graph.Vertex{}, err
	}
	if len(records) == 0 {
		return graph.Vertex{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("user %s not found", userID),
		}
	}
	return graph.DecodeVertex(records[0], "u")
}
