// Package store provides the external transcript archives.
package store

import (
	"context"
	"fmt"

	"github.com/sweetpotato0/ai-devteam/config"
	"github.com/sweetpotato0/ai-devteam/transcript"
)

// Open builds the archive selected by cfg.Driver.
func Open(ctx context.Context, cfg config.ArchiveConfig) (transcript.Store, error) {
	switch cfg.Driver {
	case "", config.ArchiveNone:
		return transcript.Discard{}, nil
	case config.ArchiveMemory:
		return transcript.NewMemoryStore(), nil
	case config.ArchiveRedis:
		return NewRedisStore(ctx, &RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.Redis.TTL,
		})
	case config.ArchivePostgres:
		return NewPostgresStore(ctx, cfg.Postgres.DSN())
	case config.ArchiveMongo:
		return NewMongoStore(ctx, &MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
	}
}
