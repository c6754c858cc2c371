// Package storage opens the credential store selected by configuration.
package storage

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/credentials/filerepo"
	"github.com/jrsteele09/go-admin-session/credentials/redisrepo"
	credentialrepofake "github.com/jrsteele09/go-admin-session/credentials/repofake"
	"github.com/jrsteele09/go-admin-session/credentials/sqliterepo"
	"github.com/jrsteele09/go-admin-session/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Store is an opened credential store. Close releases the backend's
// connections; it is a no-op for memory and file stores.
type Store struct {
	credentials.Store
	Backend string
	close   func() error
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Open builds the store named by cfg, using keys for the two token entries.
func Open(ctx context.Context, cfg config.StorageConfig, keys credentials.Keys) (*Store, error) {
	backend := cfg.GetCredentialBackend()
	switch backend {
	case config.BackendMemory:
		return &Store{Store: credentialrepofake.NewFakeCredentialRepoWithKeys(keys), Backend: backend}, nil

	case config.BackendFile:
		repo, err := filerepo.New(cfg.GetCredentialPath(), keys)
		if err != nil {
			return nil, fmt.Errorf("[storage Open] %w", err)
		}
		return &Store{Store: repo, Backend: backend}, nil

	case config.BackendSQLite:
		repo, err := sqliterepo.Open(ctx, cfg.GetCredentialPath(), keys)
		if err != nil {
			return nil, fmt.Errorf("[storage Open] %w", err)
		}
		return &Store{Store: repo, Backend: backend, close: repo.Close}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       cfg.GetRedisDB(),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("[storage Open] redis %s: %w", cfg.GetRedisAddr(), err)
		}
		repo, err := redisrepo.New(client, cfg.GetRedisPrefix(), keys)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("[storage Open] %w", err)
		}
		return &Store{Store: repo, Backend: backend, close: client.Close}, nil
	}

	log.Error().Str("backend", backend).Msg("Unsupported credential backend")
	return nil, fmt.Errorf("[storage Open] unsupported credential backend %q", backend)
}
