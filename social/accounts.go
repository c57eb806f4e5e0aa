package social

import (
	"context"
	"fmt"
	"time"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/graph"
)

// CreateAccountRequest carries a signup. The password arrives already hashed;
// request-shape validation beyond what the stores need happens upstream.
type CreateAccountRequest struct {
	UserName     string
	Email        string
	Phone        string
	PasswordHash string
	BirthDate    string
	FullName     string
	Bio          string
	Gender       string
	Pronouns     string
	Links        []string
	// Code is the confirmation code delivered out of band; its vertex is
	// consumed exactly once inside the signup transaction.
	Code string
	// DryRun validates uniqueness and rolls the transaction back without
	// persisting anything.
	DryRun bool
}

// CreateAccountResult reports a signup outcome.
type CreateAccountResult struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	ProfileID string `json:"profileId,omitempty"`
}

const (
	uniquenessQuery = `
MATCH (u:User)
WHERE u.userName = $userName OR u.email = $email
   OR ($phone IS NOT NULL AND u.phone = $phone)
RETURN count(u) AS n`

	insertUserQuery = `
CREATE (u:User {id: $id, userName: $userName, email: $email, phone: $phone,
	passwordHash: $passwordHash, birthDate: $birthDate, joinDate: $joinDate})
RETURN u.id AS id`

	consumeCodeQuery = `
MATCH (c:ConfirmationCode {email: $email, code: $code})
DELETE c
RETURN count(*) AS n`

	setProfileIDQuery = `
MATCH (u:User {id: $id})
SET u.profileId = $profileId`
)

// CreateAccount runs the signup saga: uniqueness check, user vertex insert and
// confirmation-code consumption share one transaction with the profile
// document insert and join-key write-back, so a failure anywhere leaves no
// vertex without its document id. Dry runs stop after the code would be
// consumed and roll back.
func (s *Service) CreateAccount(ctx context.Context, req CreateAccountRequest) (CreateAccountResult, error) {
	started := time.Now()
	defer func() { s.tel.Observe(ctx, "createAccount", time.Since(started)) }()
	s.tel.Increment(ctx, "createAccount")

	if req.UserName == "" || req.Email == "" || req.PasswordHash == "" {
		return CreateAccountResult{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("userName, email and password are required"),
		}
	}
	if !req.DryRun && req.Code == "" {
		return CreateAccountResult{}, openpix.Error{
			Code: openpix.ValidationFailure,
			Err:  fmt.Errorf("confirmation code is required"),
		}
	}

	userID := openpix.NewUUID().String()
	// An absent phone stays null so the uniqueness check and the phone
	// constraint never collide two phoneless accounts.
	var phone any
	if req.Phone != "" {
		phone = req.Phone
	}
	bio := Sanitize(req.Bio)
	doc := ProfileDoc{
		UserID:   userID,
		UserName: req.UserName,
		FullName: Sanitize(req.FullName),
		Bio:      bio,
		Gender:   req.Gender,
		Pronouns: req.Pronouns,
		Links:    req.Links,
		Hashtags: ExtractHashtags(bio),
		Mentions: ExtractMentions(bio),
	}

	var profileID string
	err := s.runInTransaction(ctx, "createAccount", func(ctx context.Context, g graph.Runner) error {
		// Check and insert share this transaction; the window between them is
		// bounded by the store's isolation level, with the unique constraint
		// as the backstop.
		records, err := g.Run(ctx, uniquenessQuery, map[string]any{
			"userName": req.UserName, "email": req.Email, "phone": phone,
		})
		if err != nil {
			return err
		}
		if len(records) > 0 {
			n, err := graph.Int64(records[0], "n")
			if err != nil {
				return err
			}
			if n > 0 {
				return openpix.Error{
					Code: openpix.ValidationFailure,
					Err:  fmt.Errorf("userName, email or phone already taken"),
				}
			}
		}

		if _, err := g.Run(ctx, insertUserQuery, map[string]any{
			"id": userID, "userName": req.UserName, "email": req.Email,
			"phone": phone, "passwordHash": req.PasswordHash,
			"birthDate": req.BirthDate,
			"joinDate":  time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}

		if req.DryRun {
			return errAbort
		}

		// Consume the confirmation code exactly once, inside this
		// transaction, so a replayed signup cannot reuse it.
		records, err = g.Run(ctx, consumeCodeQuery, map[string]any{
			"email": req.Email, "code": req.Code,
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
				Err:  fmt.Errorf("confirmation code is invalid or expired"),
			}
		}

		// The document is created after the vertex exists but before commit;
		// a failure from here on rolls the vertex back.
		profileID, err = s.index.Insert(ctx, doc)
		if err != nil {
			return indexFailure(err)
		}

		_, err = g.Run(ctx, setProfileIDQuery, map[string]any{
			"id": userID, "profileId": profileID,
		})
		return err
	})
	if err != nil {
		return CreateAccountResult{}, err
	}

	if req.DryRun {
		return CreateAccountResult{Status: "OK"}, nil
	}

	// Outside the atomicity boundary, best effort.
	s.cache.Set(ctx, profileID, doc, 0)
	return CreateAccountResult{Status: "OK", UserID: userID, ProfileID: profileID}, nil
}
