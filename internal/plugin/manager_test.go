package plugin

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/remote"
	"github.com/edvin/paas/internal/remote/remotetest"
	"github.com/edvin/paas/internal/store"
)

func newTestStore(t *testing.T, plugins []model.PluginInstallation) *store.Memory {
	t.Helper()
	st := store.NewMemory()
	require.NoError(t, st.CreateServer(context.Background(), &model.Server{ID: "srv-1", Name: "web-1", TenantSlug: "acme", Plugins: plugins}))
	return st
}

func connect(t *testing.T, exec *remotetest.Executor) remote.Conn {
	t.Helper()
	conn, err := exec.Connect(context.Background(), model.SSHDetails{ServerID: "srv-1"})
	require.NoError(t, err)
	return conn
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, typ := range DefaultDatabaseTypes {
		assert.Equal(t, []string{typ}, r.RequiredPlugins(CategoryDatabase, typ))
	}
	assert.Empty(t, r.RequiredPlugins(CategoryDocker, "postgres"))
	assert.Empty(t, r.RequiredPlugins(CategoryApp, ""))
	assert.Empty(t, r.RequiredPlugins(CategoryDatabase, "Postgres"))
	assert.True(t, r.SupportsDatabase("redis"))
	assert.False(t, r.SupportsDatabase("oracle"))
	assert.Len(t, r.DatabaseTypes(), len(DefaultDatabaseTypes))
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	r := NewRegistry(map[Key][]string{{Category: CategoryDocker, Type: "gpu"}: {"nvidia"}})
	got := r.RequiredPlugins(CategoryDocker, "gpu")
	got[0] = "changed"
	assert.Equal(t, []string{"nvidia"}, r.RequiredPlugins(CategoryDocker, "gpu"))
}

func TestCheckInstalled(t *testing.T) {
	exec := remotetest.New()
	exec.On("plugin:list", remotetest.Response{Stdout: []string{
		"=====> Plugins",
		"  postgres 1.41.0 enabled  dokku postgres service plugin",
	}})
	m := NewManager(nil, newTestStore(t, nil), zerolog.Nop())

	status, err := m.CheckInstalled(context.Background(), connect(t, exec), []string{"postgres", "redis"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"postgres": true, "redis": false}, status)
}

func TestCheckInstalled_ListFailure(t *testing.T) {
	exec := remotetest.New()
	exec.On("plugin:list", remotetest.Response{Stderr: []string{"permission denied"}, ExitCode: 1})
	m := NewManager(nil, newTestStore(t, nil), zerolog.Nop())

	_, err := m.CheckInstalled(context.Background(), connect(t, exec), []string{"postgres"})
	var cmdErr *remote.CommandError
	assert.ErrorAs(t, err, &cmdErr)
}

func TestInstallMissing_StreamsOutput(t *testing.T) {
	exec := remotetest.New()
	exec.On("plugin:install", remotetest.Response{Stdout: []string{"-----> Cloning plugin repo", "-----> Plugin installed"}})
	m := NewManager(nil, newTestStore(t, nil), zerolog.Nop())

	var lines []string
	err := m.InstallMissing(context.Background(), connect(t, exec), []string{"postgres"}, func(l string) { lines = append(lines, l) })
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-----> Installing plugin postgres",
		"-----> Cloning plugin repo",
		"-----> Plugin installed",
	}, lines)
}

func TestEnsure_SecondPluginFailsStopsRemainingAndSyncs(t *testing.T) {
	exec := remotetest.New()
	exec.On("plugin:list", remotetest.Response{Stdout: []string{"  alpha 1.0.0 enabled  alpha plugin"}})
	exec.On("plugin:list", remotetest.Response{}).Once()
	exec.On("--name beta", remotetest.Response{Stderr: []string{"clone failed"}, ExitCode: 1})

	registry := NewRegistry(map[Key][]string{
		{Category: CategoryDatabase, Type: "multi"}: {"alpha", "beta", "gamma"},
	})
	st := newTestStore(t, nil)
	m := NewManager(registry, st, zerolog.Nop())
	names := m.RequiredPlugins(CategoryDatabase, "multi")

	err := m.Ensure(context.Background(), connect(t, exec), "srv-1", names, nil)
	require.Error(t, err)

	var installErr *InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "beta", installErr.Plugin)
	assert.Contains(t, err.Error(), "beta")

	assert.True(t, exec.Ran("--name alpha"))
	assert.True(t, exec.Ran("--name beta"))
	assert.False(t, exec.Ran("--name gamma"))

	srv, err := st.GetServer(context.Background(), "srv-1")
	require.NoError(t, err)
	require.Len(t, srv.Plugins, 1)
	assert.Equal(t, "alpha", srv.Plugins[0].Name)
}

func TestEnsure_AllInstalledRunsNothing(t *testing.T) {
	exec := remotetest.New()
	exec.On("plugin:list", remotetest.Response{Stdout: []string{"  postgres 1.41.0 enabled  x"}})
	m := NewManager(nil, newTestStore(t, nil), zerolog.Nop())

	err := m.Ensure(context.Background(), connect(t, exec), "srv-1", []string{"postgres"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"dokku plugin:list"}, exec.Commands())
}

func TestEnsure_NoPluginsRequired(t *testing.T) {
	exec := remotetest.New()
	m := NewManager(nil, newTestStore(t, nil), zerolog.Nop())

	require.NoError(t, m.Ensure(context.Background(), connect(t, exec), "srv-1", nil, nil))
	assert.Empty(t, exec.Commands())
}

func TestSync_PreservesConfigurationOfUnchangedPlugins(t *testing.T) {
	stored := []model.PluginInstallation{
		{Name: "postgres", Status: model.PluginEnabled, Version: "1.40.0", Configuration: map[string]string{"image": "postgres:16"}},
		{Name: "letsencrypt", Status: model.PluginEnabled, Version: "0.20.0", Configuration: map[string]string{"email": "ops@acme.test"}},
	}
	exec := remotetest.New()
	exec.On("plugin:list", remotetest.Response{Stdout: []string{
		"  postgres 1.41.0 enabled  dokku postgres service plugin",
		"  redis    1.39.0 enabled  dokku redis service plugin",
	}})
	st := newTestStore(t, stored)
	m := NewManager(nil, st, zerolog.Nop())

	merged, err := m.Sync(context.Background(), connect(t, exec), "srv-1")
	require.NoError(t, err)

	expected := []model.PluginInstallation{
		{Name: "postgres", Status: model.PluginEnabled, Version: "1.41.0", Configuration: map[string]string{"image": "postgres:16"}},
		{Name: "redis", Status: model.PluginEnabled, Version: "1.39.0", Configuration: map[string]string{}},
	}
	assert.Equal(t, expected, merged)

	srv, err := st.GetServer(context.Background(), "srv-1")
	require.NoError(t, err)
	assert.Equal(t, expected, srv.Plugins)
}

func TestSync_UnknownServer(t *testing.T) {
	exec := remotetest.New()
	m := NewManager(nil, store.NewMemory(), zerolog.Nop())

	_, err := m.Sync(context.Background(), connect(t, exec), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
