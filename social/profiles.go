package social

import (
	"context"
	"fmt"
	"time"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/graph"
)

// UpdateProfileRequest carries a profile edit. When NewPasswordHash is set, a
// matching reset token vertex must exist and is consumed inside the same
// transaction.
type UpdateProfileRequest struct {
	Token           string
	UserID          string
	UserName        string
	FullName        string
	Bio             string
	Gender          string
	Pronouns        string
	Links           []string
	NewPasswordHash string
	ResetToken      string
}

const (
	setUserPropsQuery = `
MATCH (u:User {id: $userId})
SET u.userName = $userName`

	consumeResetTokenQuery = `
MATCH (t:ResetToken {userId: $userId, token: $token})
DELETE t
RETURN count(*) AS n`

	setPasswordQuery = `
MATCH (u:User {id: $userId})
SET u.passwordHash = $passwordHash`
)

// UpdateProfile edits the profile document and the user vertex. The document
// updates first, outside any graph transaction; the vertex mutation that
// follows runs under rollback protection, and the cache is refreshed with the
// merged profile afterwards.
func (s *Service) UpdateProfile(ctx context.Context, req UpdateProfileRequest) error {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "updateProfile", time.Since(started)) }()
	s.tel.Increment(ctx, "updateProfile")

	if err := s.authorize(req.Token, req.UserID); err != nil {
		return err
	}
	if req.NewPasswordHash != "" && req.ResetToken == "" {
		return openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("a password change requires a reset token"),
		}
	}

	g, err := s.graph.Graph(ctx, false)
	if err != nil {
		return s.fail(ctx, "updateProfile", err, nil)
	}
	user, err := lookupUser(ctx, g, req.UserID)
	if err != nil {
		return s.fail(ctx, "updateProfile", err, nil)
	}
	profileID, _ := user.Props["profileId"].(string)
	if profileID == "" {
		return s.fail(ctx, "updateProfile",
			fmt.Errorf("user %s has no profile document id", req.UserID), nil)
	}

	bio := Sanitize(req.Bio)
	merged := ProfileDoc{
		UserID:   req.UserID,
		UserName: req.UserName,
		FullName: Sanitize(req.FullName),
		Bio:      bio,
		Gender:   req.Gender,
		Pronouns: req.Pronouns,
		Links:    req.Links,
		Hashtags: ExtractHashtags(bio),
		Mentions: ExtractMentions(bio),
	}
	if err := s.index.Update(ctx, profileID, merged); err != nil {
		return s.fail(ctx, "updateProfile", indexFailure(err), nil)
	}

	err = s.runInTransaction(ctx, "updateProfile", func(ctx context.Context, g graph.Runner) error {
		if _, err := g.Run(ctx, setUserPropsQuery, map[string]any{
			"userId": req.UserID, "userName": req.UserName,
		}); err != nil {
			return err
		}
		if req.NewPasswordHash == "" {
			return nil
		}
		// Consume the reset token exactly once, inside this transaction.
		records, err := g.Run(ctx, consumeResetTokenQuery, map[string]any{
			"userId": req.UserID, "token": req.ResetToken,
		})
		if err != nil {
			return err
		}
		consumed := int64(0)
		if len(records) > 0 {
			if consumed, err = graph.Int64(records[0], "n"); err != nil {
				return err
			}
		}
		if consumed == 0 {
			return openpix.Error{
				Code: openpix.ValidationFailure,
				Err:  fmt.Errorf("reset token is invalid or expired"),
			}
		}
		_, err = g.Run(ctx, setPasswordQuery, map[string]any{
			"userId": req.UserID, "passwordHash": req.NewPasswordHash,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.cache.Set(ctx, profileID, merged, 0)
	return nil
}

// GetProfile reads a profile document through the cache, falling back to the
// index on a miss and writing the result back. Cache absence never means the
// profile does not exist.
func (s *Service) GetProfile(ctx context.Context, profileID string) (ProfileDoc, error) {
	var doc ProfileDoc
	if found, _ := s.cache.Get(ctx, profileID, &doc); found {
		return doc, nil
	}
	hits, err := s.index.Search(ctx, map[string]any{
		"ids": map[string]any{"values": []any{profileID}},
	}, 1)
	if err != nil {
		return ProfileDoc{}, translate("getProfile", indexFailure(err))
	}
	if len(hits) == 0 {
		return ProfileDoc{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("profile %s not found", profileID),
		}
	}
	if err := unmarshalHit(hits[0].Source, &doc); err != nil {
		return ProfileDoc{}, err
	}
	s.cache.Set(ctx, profileID, doc, 0)
	return doc, nil
}
