package social

import (
	"context"
	"time"

	"github.com/openpix/openpix/graph"
)

// ToggleLikeResult reports the like state after the toggle.
type ToggleLikeResult struct {
	Liked bool `json:"liked"`
}

const (
	likeExistsQuery = `
MATCH (p:Post {id: $postId})-[l:LIKED_BY]->(u:User {id: $userId})
RETURN count(l) AS n`

	addLikeQuery = `
MATCH (p:Post {id: $postId})
MATCH (u:User {id: $userId})
CREATE (p)-[:LIKED_BY]->(u)
CREATE (u)-[:LIKES]->(p)`

	removeLikeQuery = `
MATCH (p:Post {id: $postId})-[l:LIKED_BY]->(u:User {id: $userId})
MATCH (u)-[k:LIKES]->(p)
DELETE l, k`
)

// ToggleLike flips the paired like edges between a user and a post. The check
// and the edge mutation share one transaction; the operation is entirely
// graph-scoped, with no index or cache involvement.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (ToggleLikeResult, error) {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "toggleLike", time.Since(started)) }()
	s.tel.Increment(ctx, "toggleLike")

	var liked bool
	err := s.runInTransaction(ctx, "toggleLike", func(ctx context.Context, g graph.Runner) error {
		params := map[string]any{"postId": postID, "userId": userID}
		records, err := g.Run(ctx, likeExistsQuery, params)
		if err != nil {
			return err
		}
		exists := int64(0)
		if len(records) > 0 {
			if exists, err = graph.Int64(records[0], "n"); err != nil {
				return err
			}
		}
		if exists > 0 {
			_, err = g.Run(ctx, removeLikeQuery, params)
			liked = false
			return err
		}
		_, err = g.Run(ctx, addLikeQuery, params)
		liked = true
		return err
	})
	if err != nil {
		return ToggleLikeResult{}, err
	}
	return ToggleLikeResult{Liked: liked}, nil
}
