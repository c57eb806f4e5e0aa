package graph

import (
	"context"
)

// schemaStatements declares the unique constraints backing the application
// level check-then-insert during account creation. The in-transaction read is
// only as safe as the store's isolation level, so a raced duplicate must fail
// at commit instead of silently winning.
var schemaStatements = []string{
	"CREATE CONSTRAINT user_name_unique IF NOT EXISTS FOR (u:User) REQUIRE u.userName IS UNIQUE",
	"CREATE CONSTRAINT user_email_unique IF NOT EXISTS FOR (u:User) REQUIRE u.email IS UNIQUE",
	"CREATE CONSTRAINT user_phone_unique IF NOT EXISTS FOR (u:User) REQUIRE u.phone IS UNIQUE",
	"CREATE CONSTRAINT post_id_unique IF NOT EXISTS FOR (p:Post) REQUIRE p.id IS UNIQUE",
	"CREATE CONSTRAINT comment_id_unique IF NOT EXISTS FOR (c:Comment) REQUIRE c.id IS UNIQUE",
}

// EnsureSchema creates the unique constraints if they are missing. Run it once
// at startup, outside any transaction.
func EnsureSchema(ctx context.Context, g Runner) error {
	for _, stmt := range schemaStatements {
		if _, err := g.Run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}
