package providers

import (
	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/totegamma/web5-playground/client"
	"github.com/totegamma/web5-playground/internal/config"
	"github.com/totegamma/web5-playground/internal/infrastructure/database"
	"github.com/totegamma/web5-playground/internal/infrastructure/gateway"
)

// NewDatabase opens a Postgres connection using the configured DSN.
func NewDatabase(conf config.Server) (*gorm.DB, error) {
	return database.NewPostgres(conf.PostgresDsn)
}

// MigrateDatabase applies migrations for the application models.
func MigrateDatabase(db *gorm.DB) error {
	return database.MigratePostgres(db)
}

// NewRedis creates the redis client backing the event log.
func NewRedis(conf config.Server) *redis.Client {
	return database.NewRedis(conf.RedisAddr, "", conf.RedisDB)
}

// NewMemcache creates a memcache client.
func NewMemcache(addr string) *memcache.Client {
	return database.NewMemcached(addr)
}

// NewClient constructs the HTTP client used to talk to the ledger explorer.
func NewClient(addr string) *client.Client {
	return client.New(addr)
}

// NewLedgerGateway constructs the resolver backed by the HTTP client.
func NewLedgerGateway(cl *client.Client) *gateway.LedgerGateway {
	return gateway.NewLedgerGateway(cl)
}
