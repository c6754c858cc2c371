package redisrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/redis/go-redis/v9"
)

var _ credentials.Store = (*Repo)(nil)

// Repo keeps credentials in redis under "<prefix>:<key>". Used when several
// console processes on one host share a session.
type Repo struct {
	client redis.UniversalClient
	prefix string
	keys   credentials.Keys
}

func New(client redis.UniversalClient, prefix string, keys credentials.Keys) (*Repo, error) {
	if client == nil {
		return nil, fmt.Errorf("[redisrepo New] client is required")
	}
	if prefix == "" {
		prefix = "admin-session"
	}
	return &Repo{client: client, prefix: prefix, keys: keys}, nil
}

func (r *Repo) key(name string) string {
	return fmt.Sprintf("%s:%s", r.prefix, name)
}

func (r *Repo) Get(ctx context.Context) (credentials.Record, error) {
	values, err := r.client.MGet(ctx, r.key(r.keys.Access), r.key(r.keys.Refresh)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return credentials.Record{}, fmt.Errorf("[redisrepo Get] %w", err)
	}
	var rec credentials.Record
	if len(values) == 2 {
		rec.AccessToken = asString(values[0])
		rec.RefreshToken = asString(values[1])
	}
	return rec, nil
}

func (r *Repo) Set(ctx context.Context, accessToken, refreshToken string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.put(ctx, pipe, r.keys.Access, accessToken)
		r.put(ctx, pipe, r.keys.Refresh, refreshToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisrepo Set] %w", err)
	}
	return nil
}

func (r *Repo) SetAccessToken(ctx context.Context, accessToken string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		r.put(ctx, pipe, r.keys.Access, accessToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("[redisrepo SetAccessToken] %w", err)
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key(r.keys.Access), r.key(r.keys.Refresh)).Err(); err != nil {
		return fmt.Errorf("[redisrepo Clear] %w", err)
	}
	return nil
}

func (r *Repo) put(ctx context.Context, pipe redis.Pipeliner, key, value string) {
	if value == "" {
		pipe.Del(ctx, r.key(key))
		return
	}
	pipe.Set(ctx, r.key(key), value, 0)
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
