package social

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/graph"
)

// MediaUpload is one media file attached to a new post.
type MediaUpload struct {
	Data    []byte
	Ext     string
	AltText string
}

// CreatePostRequest carries a new post.
type CreatePostRequest struct {
	Token    string
	UserID   string
	UserName string
	Caption  string
	Location string
	Media    []MediaUpload
}

// CreatePostResult reports the new post's ids.
type CreatePostResult struct {
	PostID string `json:"postId"`
	DocID  string `json:"esId"`
}

const (
	insertPostQuery = `
MATCH (u:User {id: $userId})
CREATE (p:Post {id: $postId, esId: $esId, createdAt: $createdAt})
CREATE (p)-[:OWNED_BY]->(u)
CREATE (u)-[:OWNS]->(p)
RETURN p.id AS id`

	patchPostScript = `
for (m in ctx._source.media) { m.postId = params.postId }
ctx._source.postId = params.postId`
)

// CreatePost uploads media, inserts the index document, then creates the post
// vertex and ownership edges in a transaction and patches the document with
// the new post id before commit. The document insert happens before the
// transaction opens, so a later graph failure deletes the orphaned document
// through an explicit compensation rather than leaving it behind; uploaded
// media objects are swept out the same way.
func (s *Service) CreatePost(ctx context.Context, req CreatePostRequest) (CreatePostResult, error) {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "createPost", time.Since(started)) }()
	s.tel.Increment(ctx, "createPost")

	if err := s.authorize(req.Token, req.UserID); err != nil {
		return CreatePostResult{}, err
	}
	if len(req.Media) == 0 {
		return CreatePostResult{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("a post needs at least one media entry"),
		}
	}

	// Media uploads are an external collaborator; a failure anywhere past the
	// first upload must sweep the already-stored objects back out.
	media := make([]Media, 0, len(req.Media))
	removeUploads := compensation{
		name: "remove uploaded media",
		run: func(ctx context.Context) error {
			var lastErr error
			for _, m := range media {
				if err := s.blobs.Remove(ctx, m.URL); err != nil {
					lastErr = err
				}
			}
			return lastErr
		},
	}
	for _, m := range req.Media {
		uploaded, err := s.blobs.Upload(ctx, bytes.NewReader(m.Data),
			openpix.NewUUID().String(), req.UserID, m.Ext)
		if err != nil {
			return CreatePostResult{}, s.fail(ctx, "createPost", err, []compensation{removeUploads})
		}
		media = append(media, Media{URL: uploaded.URL, Tag: uploaded.Tag, AltText: Sanitize(m.AltText)})
	}

	caption := Sanitize(req.Caption)
	doc := PostDoc{
		UserID:    req.UserID,
		UserName:  req.UserName,
		Caption:   caption,
		Location:  Sanitize(req.Location),
		Media:     media,
		Hashtags:  ExtractHashtags(caption),
		Mentions:  ExtractMentions(caption),
		Timestamp: time.Now().UnixMilli(),
	}

	docID, err := s.index.Insert(ctx, doc)
	if err != nil {
		return CreatePostResult{}, s.fail(ctx, "createPost", indexFailure(err), []compensation{removeUploads})
	}

	postID := openpix.NewUUID().String()
	err = s.runInTransaction(ctx, "createPost", func(ctx context.Context, g graph.Runner) error {
		records, err := g.Run(ctx, insertPostQuery, map[string]any{
			"userId": req.UserID, "postId": postID, "esId": docID,
			"createdAt": doc.Timestamp,
		})
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return openpix.Error{
				Code: openpix.ValidationFailure,
				Err:  fmt.Errorf("user %s not found", req.UserID),
			}
		}
		if err := s.index.UpdateScript(ctx, docID, patchPostScript,
			map[string]any{"postId": postID}); err != nil {
			return indexFailure(err)
		}
		return nil
	}, compensation{
		name: "delete orphaned index document",
		run:  func(ctx context.Context) error { return s.index.Delete(ctx, docID) },
	}, removeUploads)
	if err != nil {
		return CreatePostResult{}, err
	}

	doc.PostID = postID
	for i := range doc.Media {
		doc.Media[i].PostID = postID
	}
	s.cache.Set(ctx, docID, doc, 0)
	return CreatePostResult{PostID: postID, DocID: docID}, nil
}

// UpdatePostRequest carries a caption/location edit.
type UpdatePostRequest struct {
	Token    string
	UserID   string
	PostID   string
	Caption  string
	Location string
}

const setEditedAtQuery = `
MATCH (p:Post {id: $postId})
SET p.editedAt = $editedAt`

// UpdatePost edits a post's caption and location. The index document changes
// first, outside any graph transaction; the graph mutation that follows is
// the one needing rollback protection.
func (s *Service) UpdatePost(ctx context.Context, req UpdatePostRequest) error {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "updatePost", time.Since(started)) }()
	s.tel.Increment(ctx, "updatePost")

	if err := s.authorize(req.Token, req.UserID); err != nil {
		return err
	}

	g, err := s.graph.Graph(ctx, false)
	if err != nil {
		return s.fail(ctx, "updatePost", err, nil)
	}
	lookup, err := lookupPostOwner(ctx, g, req.PostID)
	if err != nil {
		return s.fail(ctx, "updatePost", err, nil)
	}
	if lookup.OwnerID != req.UserID {
		return openpix.Error{Code: openpix.AuthorizationFailure, Err: errPermission, UserData: req.PostID}
	}

	caption := Sanitize(req.Caption)
	partial := map[string]any{
		"caption":  caption,
		"location": Sanitize(req.Location),
		"hashtags": ExtractHashtags(caption),
		"mentions": ExtractMentions(caption),
	}
	if err := s.index.Update(ctx, lookup.DocID, partial); err != nil {
		return s.fail(ctx, "updatePost", indexFailure(err), nil)
	}

	err = s.runInTransaction(ctx, "updatePost", func(ctx context.Context, g graph.Runner) error {
		_, err := g.Run(ctx, setEditedAtQuery, map[string]any{
			"postId": req.PostID, "editedAt": time.Now().UnixMilli(),
		})
		return err
	})
	if err != nil {
		return err
	}

	// Refresh the cached document with the merged content.
	var cached PostDoc
	if found, _ := s.cache.Get(ctx, lookup.DocID, &cached); found {
		cached.Caption = partial["caption"].(string)
		cached.Location = partial["location"].(string)
		cached.Hashtags = partial["hashtags"].([]string)
		cached.Mentions = partial["mentions"].([]string)
		s.cache.Set(ctx, lookup.DocID, cached, 0)
	} else {
		s.cache.Delete(ctx, lookup.DocID)
	}
	return nil
}

// DeletePostRequest identifies a post to remove on behalf of its owner.
type DeletePostRequest struct {
	Token  string
	UserID string
	PostID string
}

const (
	deleteCommentsQuery = `
MATCH (c:Comment)
WHERE c.id IN $ids
DETACH DELETE c`

	deletePostQuery = `
MATCH (p:Post {id: $postId})
DETACH DELETE p`
)

// DeletePost removes a post, its whole comment tree, its index document and
// its cache entry. Vertex drops and the index delete share the saga: an index
// delete failure rolls the drops back. An already-absent document counts as
// deleted.
func (s *Service) DeletePost(ctx context.Context, req DeletePostRequest) error {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "deletePost", time.Since(started)) }()
	s.tel.Increment(ctx, "deletePost")

	if err := s.authorize(req.Token, req.UserID); err != nil {
		return err
	}

	// Ownership and the removal set resolve outside the transaction; only
	// the destructive traversals need its protection.
	g, err := s.graph.Graph(ctx, false)
	if err != nil {
		return s.fail(ctx, "deletePost", err, nil)
	}
	lookup, err := lookupPostOwner(ctx, g, req.PostID)
	if err != nil {
		return s.fail(ctx, "deletePost", err, nil)
	}
	if lookup.OwnerID != req.UserID {
		return openpix.Error{Code: openpix.AuthorizationFailure, Err: errPermission, UserData: req.PostID}
	}
	commentIDs, err := lookupDescendantComments(ctx, g, req.PostID)
	if err != nil {
		return s.fail(ctx, "deletePost", err, nil)
	}

	err = s.runInTransaction(ctx, "deletePost", func(ctx context.Context, g graph.Runner) error {
		if len(commentIDs) > 0 {
			if _, err := g.Run(ctx, deleteCommentsQuery, map[string]any{"ids": commentIDs}); err != nil {
				return err
			}
		}
		if _, err := g.Run(ctx, deletePostQuery, map[string]any{"postId": req.PostID}); err != nil {
			return err
		}
		if err := s.index.Delete(ctx, lookup.DocID); err != nil {
			return indexFailure(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Delete(ctx, lookup.DocID)
	return nil
}
