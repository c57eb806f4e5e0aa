package social

import (
	"context"
	"fmt"
	"time"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/graph"
)

// AddCommentRequest carries a new comment. A zero ParentID attaches the
// comment to the post itself; otherwise it becomes a reply under ParentID.
type AddCommentRequest struct {
	Token    string
	UserID   string
	PostID   string
	ParentID string
	Text     string
}

// AddCommentResult reports the new comment's id.
type AddCommentResult struct {
	CommentID string `json:"commentId"`
}

const (
	insertCommentQuery = `
MATCH (p:Post {id: $postId})
MATCH (u:User {id: $userId})
CREATE (c:Comment {id: $commentId, text: $text, createdAt: $createdAt})
CREATE (p)-[:HAS_COMMENT]->(c)
CREATE (c)-[:AUTHORED_BY]->(u)
RETURN c.id AS id`

	insertReplyQuery = `
MATCH (parent:Comment {id: $parentId})
MATCH (u:User {id: $userId})
CREATE (c:Comment {id: $commentId, text: $text, createdAt: $createdAt})
CREATE (parent)-[:HAS_COMMENT]->(c)
CREATE (c)-[:AUTHORED_BY]->(u)
RETURN c.id AS id`

	bumpCommentsScript = `ctx._source.comments += params.delta`
)

// AddComment creates a comment vertex with its tree and authorship edges, and
// bumps the denormalized comment counter on the post document inside the same
// saga, so a counter failure rolls the vertex back.
func (s *Service) AddComment(ctx context.Context, req AddCommentRequest) (AddCommentResult, error) {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "addComment", time.Since(started)) }()
	s.tel.Increment(ctx, "addComment")

	if err := s.authorize(req.Token, req.UserID); err != nil {
		return AddCommentResult{}, err
	}
	text := Sanitize(req.Text)
	if text == "" {
		return AddCommentResult{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("comment text is required"),
		}
	}

	g, err := s.graph.Graph(ctx, false)
	if err != nil {
		return AddCommentResult{}, s.fail(ctx, "addComment", err, nil)
	}
	lookup, err := lookupPostOwner(ctx, g, req.PostID)
	if err != nil {
		return AddCommentResult{}, s.fail(ctx, "addComment", err, nil)
	}

	commentID := openpix.NewUUID().String()
	err = s.runInTransaction(ctx, "addComment", func(ctx context.Context, g graph.Runner) error {
		query := insertCommentQuery
		params := map[string]any{
			"postId": req.PostID, "userId": req.UserID,
			"commentId": commentID, "text": text,
			"createdAt": time.Now().UnixMilli(),
		}
		if req.ParentID != "" {
			query = insertReplyQuery
			params["parentId"] = req.ParentID
			delete(params, "postId")
		}
		records, err := g.Run(ctx, query, params)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return openpix.Error{
				Code: openpix.ValidationFailure,
				Err:  fmt.Errorf("comment target not found"),
			}
		}
		if err := s.index.UpdateScript(ctx, lookup.DocID, bumpCommentsScript,
			map[string]any{"delta": 1}); err != nil {
			return indexFailure(err)
		}
		return nil
	})
	if err != nil {
		return AddCommentResult{}, err
	}

	// The cached document's counter is stale now; drop it.
	s.cache.Delete(ctx, lookup.DocID)
	return AddCommentResult{CommentID: commentID}, nil
}
