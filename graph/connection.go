package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Options holds the graph store connection settings.
type Options struct {
	// URI is the bolt/neo4j connection URI of the server or cluster.
	URI string
	// Username required when connecting to the server.
	Username string
	// Password required when connecting to the server.
	Password string
	// Database to execute traversals against.
	Database string
}

// DefaultOptions.
func DefaultOptions() Options {
	return Options{
		URI:      "neo4j://localhost:7687",
		Username: "neo4j",
		Database: "neo4j",
	}
}

// openDriver establishes a driver and verifies connectivity.
func openDriver(ctx context.Context, options Options) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(options.URI, neo4j.BasicAuth(options.Username, options.Password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return driver, nil
}

func closeDriver(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return nil
	}
	return driver.Close(ctx)
}
