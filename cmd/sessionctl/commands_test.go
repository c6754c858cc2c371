package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-admin-session/internal/fakebackend"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T) (*fakebackend.Backend, string) {
	t.Helper()
	backend := fakebackend.Start(fakebackend.WithMenus([]map[string]any{
		{"name": "Dashboard", "path": "/dashboard", "component": "dashboard", "permission": "dashboard:view", "meta": map[string]any{"title": "Dashboard"}},
	}))
	t.Cleanup(backend.Close)

	path := filepath.Join(t.TempDir(), "credentials.json")
	t.Setenv("ADMIN_CONFIG", "")
	t.Setenv("ADMIN_API_BASE_URL", backend.URL())
	t.Setenv("ADMIN_CREDENTIAL_BACKEND", "file")
	t.Setenv("ADMIN_CREDENTIAL_PATH", path)
	t.Setenv("ENV", "test")
	t.Setenv("ADMIN_LOG_LEVEL", "error")
	return backend, path
}

func TestSessionLifecycleCommands(t *testing.T) {
	backend, path := setupEnv(t)

	require.NoError(t, run([]string{"-q", "login", "-u", fakebackend.DefaultUsername, "-p", fakebackend.DefaultPassword}))
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, run([]string{"-q", "status"}))
	require.NoError(t, run([]string{"-q", "me"}))
	require.NoError(t, run([]string{"-q", "menus"}))
	require.NoError(t, run([]string{"-q", "routes"}))

	backend.ExpireAccessTokens()
	require.NoError(t, run([]string{"-q", "refresh"}))
	require.Equal(t, 1, backend.RefreshCount())

	require.NoError(t, run([]string{"-q", "logout"}))
	require.Equal(t, 1, backend.LogoutCount())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	require.Error(t, run([]string{"-q", "refresh"}))
}

func TestLoginRejectsBadPassword(t *testing.T) {
	setupEnv(t)
	require.Error(t, run([]string{"-q", "login", "-u", fakebackend.DefaultUsername, "-p", "wrong"}))
	require.Error(t, run([]string{"-q", "login"}))
}

func TestMiniProgramCommands(t *testing.T) {
	setupEnv(t)
	require.Error(t, run([]string{"-q", "mp-me"}))
	require.NoError(t, run([]string{"-q", "mp-login", "-code", fakebackend.DefaultWxCode}))
	require.NoError(t, run([]string{"-q", "mp-me"}))
}

func TestUnknownCommand(t *testing.T) {
	setupEnv(t)
	require.Error(t, run(nil))
	require.Error(t, run([]string{"-q", "nope"}))
}

func TestWatchNeedsFileBackend(t *testing.T) {
	setupEnv(t)
	t.Setenv("ADMIN_CREDENTIAL_BACKEND", "memory")
	require.Error(t, run([]string{"-q", "watch"}))
}

func TestListViews(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "system", "user"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "system", "user", "index.vue"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), nil, 0o644))

	views, err := listViews(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"system/user/index.vue"}, views)

	views, err = listViews("")
	require.NoError(t, err)
	require.Empty(t, views)
}
