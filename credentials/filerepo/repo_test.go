package filerepo_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-admin-session/credentials"
	"github.com/jrsteele09/go-admin-session/credentials/filerepo"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *filerepo.Repo {
	t.Helper()
	repo, err := filerepo.New(filepath.Join(t.TempDir(), "nested", "credentials.json"), credentials.AdminKeys())
	require.NoError(t, err)
	return repo
}

func TestFileRepoPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Set(ctx, "access-1", "refresh-1"))

	reopened, err := filerepo.New(repo.Path(), credentials.AdminKeys())
	require.NoError(t, err)
	rec, err := reopened.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, credentials.Record{AccessToken: "access-1", RefreshToken: "refresh-1"}, rec)

	info, err := os.Stat(repo.Path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileRepoSetAccessTokenKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Set(ctx, "access-1", "refresh-1"))
	require.NoError(t, repo.SetAccessToken(ctx, "access-2"))

	rec, err := repo.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, credentials.Record{AccessToken: "access-2", RefreshToken: "refresh-1"}, rec)
}

func TestFileRepoClearRemovesDocument(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Set(ctx, "access-1", "refresh-1"))
	require.NoError(t, repo.Clear(ctx))

	_, err := os.Stat(repo.Path())
	require.True(t, os.IsNotExist(err))

	rec, err := repo.Get(ctx)
	require.NoError(t, err)
	require.True(t, rec.Empty())

	// Clearing an already empty store is not an error.
	require.NoError(t, repo.Clear(ctx))
}

func TestFileRepoKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, os.WriteFile(repo.Path(), []byte(`{"theme":"dark"}`), 0o600))

	require.NoError(t, repo.Set(ctx, "a", "r"))
	require.NoError(t, repo.Clear(ctx))

	data, err := os.ReadFile(repo.Path())
	require.NoError(t, err)
	require.JSONEq(t, `{"theme":"dark"}`, string(data))
}

func TestFileRepoRejectsCorruptDocument(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, os.WriteFile(repo.Path(), []byte("{not json"), 0o600))

	_, err := repo.Get(context.Background())
	require.Error(t, err)
}

func TestFileRepoWatchReportsExternalChanges(t *testing.T) {
	repo := newRepo(t)
	other, err := filerepo.New(repo.Path(), credentials.AdminKeys())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []credentials.Record
	)
	done := make(chan error, 1)
	go func() {
		done <- repo.Watch(ctx, func(rec credentials.Record) {
			mu.Lock()
			seen = append(seen, rec)
			mu.Unlock()
		})
	}()

	want := credentials.Record{AccessToken: "a", RefreshToken: "r"}
	require.Eventually(t, func() bool {
		// Repeat the writes until the watcher is attached and reports them.
		_ = other.Clear(context.Background())
		_ = other.Set(context.Background(), want.AccessToken, want.RefreshToken)
		mu.Lock()
		defer mu.Unlock()
		for _, rec := range seen {
			if rec == want {
				return true
			}
		}
		return false
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
