package social

import (
	"context"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/openpix/openpix"
	"github.com/openpix/openpix/cache"
)

// signupScript answers the account-creation traversals: taken controls the
// uniqueness check, codeOK the confirmation-code consumption. The write-back
// of the profile id is captured for the join-key assertion.
func signupScript(taken bool, codeOK bool, wroteProfileID *string) func(string, map[string]any) ([]*db.Record, error) {
	return func(cypher string, params map[string]any) ([]*db.Record, error) {
		switch {
		case strings.Contains(cypher, "RETURN count(u) AS n"):
			n := int64(0)
			if taken {
				n = 1
			}
			return []*db.Record{record("n", n)}, nil
		case strings.Contains(cypher, "ConfirmationCode"):
			n := int64(0)
			if codeOK {
				n = 1
			}
			return []*db.Record{record("n", n)}, nil
		case strings.Contains(cypher, "SET u.profileId"):
			if wroteProfileID != nil {
				*wroteProfileID, _ = params["profileId"].(string)
			}
			return nil, nil
		case strings.Contains(cypher, "CREATE (u:User"):
			return []*db.Record{record("id", params["id"])}, nil
		}
		return nil, nil
	}
}

func signupRequest() CreateAccountRequest {
	return CreateAccountRequest{
		UserName:     "ada",
		Email:        "ada@example.com",
		PasswordHash: "x'ha",
		Code:         "123456",
		Bio:          "lace and #looms, ping @charles",
	}
}

func TestCreateAccount(t *testing.T) {
	ctx := context.Background()
	var wrote string
	g := &fakeGraph{}
	g.script = signupScript(false, true, &wrote)
	idx := newFakeIndexer()
	mem := cache.NewInMemory()
	s := NewService(Deps{Graph: g, Index: idx, Cache: mem})

	res, err := s.CreateAccount(ctx, signupRequest())
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if res.Status != "OK" {
		t.Errorf("status = %q, want OK", res.Status)
	}
	// Join-key invariant: the profile id written onto the vertex is the id
	// the index assigned.
	if len(idx.inserts) != 1 || wrote != idx.inserts[0] || res.ProfileID != wrote {
		t.Errorf("profileId on vertex = %q, index assigned %v, result %q", wrote, idx.inserts, res.ProfileID)
	}
	if g.committed != 1 || g.rolledBack != 0 {
		t.Errorf("committed=%d rolledBack=%d, want 1/0", g.committed, g.rolledBack)
	}
	if !g.ran("ConfirmationCode") {
		t.Error("confirmation code was not consumed")
	}
	if !mem.Has(res.ProfileID) {
		t.Error("profile document was not cached after commit")
	}
	var doc ProfileDoc
	if found, _ := mem.Get(ctx, res.ProfileID, &doc); !found || len(doc.Hashtags) != 1 || doc.Hashtags[0] != "looms" {
		t.Errorf("cached doc hashtags = %v, want [looms]", doc.Hashtags)
	}
}

func TestCreateAccountDryRun(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = signupScript(false, true, nil)
	idx := newFakeIndexer()
	s := NewService(Deps{Graph: g, Index: idx, Cache: cache.NewInMemory()})

	req := signupRequest()
	req.DryRun = true
	req.Code = ""
	res, err := s.CreateAccount(ctx, req)
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if res.Status != "OK" {
		t.Errorf("status = %q, want OK", res.Status)
	}
	if res.UserID != "" || res.ProfileID != "" {
		t.Errorf("dry run leaked ids: %+v", res)
	}
	// Nothing may survive: the transaction rolls back and the index is
	// never touched.
	if g.rolledBack != 1 || g.committed != 0 {
		t.Errorf("rolledBack=%d committed=%d, want 1/0", g.rolledBack, g.committed)
	}
	if len(idx.inserts) != 0 {
		t.Errorf("dry run inserted %v into the index", idx.inserts)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = signupScript(true, true, nil)
	idx := newFakeIndexer()
	s := NewService(Deps{Graph: g, Index: idx, Cache: cache.NewInMemory()})

	_, err := s.CreateAccount(ctx, signupRequest())
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
	if g.rolledBack != 1 || len(idx.inserts) != 0 {
		t.Errorf("rolledBack=%d inserts=%v, want 1 and none", g.rolledBack, idx.inserts)
	}
}

func TestCreateAccountDuplicatePhone(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = func(cypher string, params map[string]any) ([]*db.Record, error) {
		if strings.Contains(cypher, "RETURN count(u) AS n") {
			n := int64(0)
			if params["phone"] == "555-0100" {
				n = 1
			}
			return []*db.Record{record("n", n)}, nil
		}
		return signupScript(false, true, nil)(cypher, params)
	}
	idx := newFakeIndexer()
	s := NewService(Deps{Graph: g, Index: idx, Cache: cache.NewInMemory()})

	req := signupRequest()
	req.UserName = "lovelace"
	req.Email = "lovelace@example.com"
	req.Phone = "555-0100"
	_, err := s.CreateAccount(ctx, req)
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
	if g.rolledBack != 1 || len(idx.inserts) != 0 {
		t.Errorf("rolledBack=%d inserts=%v, want 1 and none", g.rolledBack, idx.inserts)
	}
}

func TestCreateAccountWithoutPhonePassesNull(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	phones := map[string]any{}
	g.script = func(cypher string, params map[string]any) ([]*db.Record, error) {
		switch {
		case strings.Contains(cypher, "RETURN count(u) AS n"):
			phones["check"] = params["phone"]
		case strings.Contains(cypher, "CREATE (u:User"):
			phones["insert"] = params["phone"]
		}
		return signupScript(false, true, nil)(cypher, params)
	}
	s := NewService(Deps{Graph: g, Index: newFakeIndexer(), Cache: cache.NewInMemory()})

	if _, err := s.CreateAccount(ctx, signupRequest()); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	// Phoneless signups must stay null so they never match each other in the
	// uniqueness check or the constraint.
	if phones["check"] != nil || phones["insert"] != nil {
		t.Errorf("phone params = %v, want null for both traversals", phones)
	}
}

func TestCreateAccountInvalidCode(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = signupScript(false, false, nil)
	idx := newFakeIndexer()
	s := NewService(Deps{Graph: g, Index: idx, Cache: cache.NewInMemory()})

	_, err := s.CreateAccount(ctx, signupRequest())
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
	if g.rolledBack != 1 || len(idx.inserts) != 0 {
		t.Errorf("rolledBack=%d inserts=%v, want 1 and none", g.rolledBack, idx.inserts)
	}
}

func TestCreateAccountIndexFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	g.script = signupScript(false, true, nil)
	idx := newFakeIndexer()
	idx.insertErr = errBoom
	s := NewService(Deps{Graph: g, Index: idx, Cache: cache.NewInMemory()})

	_, err := s.CreateAccount(ctx, signupRequest())
	if openpix.CodeOf(err) != openpix.IndexOperationFailed {
		t.Fatalf("error = %v, want IndexOperationFailed", err)
	}
	if g.rolledBack != 1 || g.committed != 0 {
		t.Errorf("rolledBack=%d committed=%d, want 1/0", g.rolledBack, g.committed)
	}
}

func TestCreateAccountMissingFields(t *testing.T) {
	ctx := context.Background()
	g := &fakeGraph{}
	s := NewService(Deps{Graph: g, Index: newFakeIndexer(), Cache: cache.NewInMemory()})

	_, err := s.CreateAccount(ctx, CreateAccountRequest{UserName: "ada"})
	if openpix.CodeOf(err) != openpix.ValidationFailure {
		t.Fatalf("error = %v, want ValidationFailure", err)
	}
	// Validation failures never touch any store.
	if g.begun != 0 || len(g.queries) != 0 {
		t.Errorf("validation failure reached the graph: begun=%d queries=%v", g.begun, g.queries)
	}
}
