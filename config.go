package openpix

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// GraphConfig holds configuration for connecting to the Neo4j graph store.
type GraphConfig struct {
	// URI is the bolt/neo4j connection URI.
	URI string `env:"OPENPIX_GRAPH_URI" envDefault:"neo4j://localhost:7687"`
	// Username used to authenticate.
	Username string `env:"OPENPIX_GRAPH_USER" envDefault:"neo4j"`
	// Password used to authenticate.
	Password string `env:"OPENPIX_GRAPH_PASSWORD"`
	// Database to execute traversals against.
	Database string `env:"OPENPIX_GRAPH_DB" envDefault:"neo4j"`
}

// SearchConfig holds configuration for the search/indexing engine.
type SearchConfig struct {
	// Addresses lists the engine endpoints.
	Addresses []string `env:"OPENPIX_SEARCH_ADDRESSES" envDefault:"http://localhost:9200"`
	Username  string   `env:"OPENPIX_SEARCH_USER"`
	Password  string   `env:"OPENPIX_SEARCH_PASSWORD"`
	// Index is the document index all operations target.
	Index string `env:"OPENPIX_SEARCH_INDEX" envDefault:"openpix"`
}

// CacheConfig holds configuration for connecting to the Redis cache.
type CacheConfig struct {
	// Address is the host:port of the Redis server/cluster.
	Address string `env:"OPENPIX_CACHE_ADDRESS" envDefault:"localhost:6379"`
	// Password is the password used to authenticate.
	Password string `env:"OPENPIX_CACHE_PASSWORD"`
	// DB is the database index to select.
	DB int `env:"OPENPIX_CACHE_DB" envDefault:"0"`
	// DefaultTTL applies to Set calls that do not specify an expiration.
	DefaultTTL time.Duration `env:"OPENPIX_CACHE_TTL" envDefault:"30m"`
	// MaxReconnects caps transport reconnect attempts before the client
	// gives up permanently on a call.
	MaxReconnects int `env:"OPENPIX_CACHE_MAX_RECONNECTS" envDefault:"3"`
}

// Config aggregates the per-store options so a process can stand up all three
// clients from the environment.
type Config struct {
	Graph  GraphConfig
	Search SearchConfig
	Cache  CacheConfig
}

// LoadConfig populates Config from environment variables, applying defaults
// for anything unset.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
