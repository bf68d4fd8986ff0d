package mcpserver

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/events"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/queue"
	"github.com/edvin/paas/internal/store"
)

func newServices(t *testing.T) *core.Services {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	q := queue.NewManager(zerolog.Nop(), queue.ManagerOptions{})
	release := make(chan struct{})
	require.NoError(t, q.Start(ctx, queue.HandlerFunc(func(ctx context.Context, job *queue.Job) (any, error) {
		<-release
		return nil, nil
	})))
	t.Cleanup(func() {
		close(release)
		q.Close()
	})

	require.NoError(t, st.CreateServer(ctx, &model.Server{ID: "srv-1", Host: "10.0.0.5", Port: 22, Username: "root", TenantSlug: "acme"}))
	require.NoError(t, st.CreateProject(ctx, &model.Project{ID: "proj-1", Name: "acme", ServerID: "srv-1", TenantSlug: "acme"}))
	require.NoError(t, st.CreateService(ctx, &model.Service{
		ID: "svc-web", ProjectID: "proj-1", Name: "acme-web", Type: model.ServiceTypeApp,
		Provider: &model.ProviderSettings{RepositoryURL: "https://github.com/acme/web.git"},
	}))

	return core.NewServices(core.Deps{
		Store:     st,
		Queue:     q,
		Inspector: q,
		Events:    events.NewHub(zerolog.Nop(), events.HubOptions{}),
		Logger:    zerolog.Nop(),
	})
}

func call(t *testing.T, tools []tool, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	for _, tl := range tools {
		if tl.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := tl.Handler(context.Background(), req)
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not registered", name)
	return nil
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := mcp.AsTextContent(res.Content[0])
	require.True(t, ok)
	return tc.Text
}

func TestTriggerDeploymentThenInspect(t *testing.T) {
	tools := buildTools(newServices(t))

	res := call(t, tools, "trigger_deployment", map[string]any{"service_id": "svc-web"})
	require.False(t, res.IsError, text(t, res))
	var sub core.Submitted
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &sub))
	assert.Equal(t, "deploy-app-svc-web", sub.JobID)

	res = call(t, tools, "list_queues", map[string]any{"server_id": "srv-1"})
	require.False(t, res.IsError)
	assert.JSONEq(t, `["server-srv-1-deploy-app"]`, text(t, res))

	res = call(t, tools, "get_job", map[string]any{"queue": sub.Queue, "job_id": sub.JobID})
	require.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"kind":"deploy-app"`)

	res = call(t, tools, "get_deployment", map[string]any{"deployment_id": sub.DeploymentID})
	require.False(t, res.IsError)
	assert.Contains(t, text(t, res), sub.DeploymentID)
}

func TestMissingArgumentIsToolError(t *testing.T) {
	tools := buildTools(newServices(t))

	res := call(t, tools, "queue_stats", map[string]any{})

	assert.True(t, res.IsError)
}

func TestUnknownServiceIsToolError(t *testing.T) {
	tools := buildTools(newServices(t))

	res := call(t, tools, "trigger_deployment", map[string]any{"service_id": "nope"})

	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "not found")
}

func TestFlushQueue(t *testing.T) {
	tools := buildTools(newServices(t))

	res := call(t, tools, "flush_queue", map[string]any{"queue": "server-srv-1-deploy-app", "force": true})

	require.False(t, res.IsError, text(t, res))
	assert.JSONEq(t, `{"status":"flushed"}`, text(t, res))
}

func TestSelectTools(t *testing.T) {
	all := buildTools(newServices(t))

	readonly := selectTools(&Config{ReadOnly: true}, all)
	for _, st := range readonly {
		assert.NotEqual(t, "trigger_deployment", st.Tool.Name)
		assert.NotEqual(t, "flush_queue", st.Tool.Name)
	}
	assert.Len(t, readonly, 5)

	custom := selectTools(&Config{Overrides: map[string]ToolOverride{
		"flush_queue": {Disabled: true},
		"list_queues":   {Description: "Queues per host"},
	}}, all)
	assert.Len(t, custom, len(all)-1)
	for _, st := range custom {
		if st.Tool.Name == "list_queues" {
			assert.Equal(t, "Queues per host", st.Tool.Description)
		}
	}
}

func TestNew_RegistersTools(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)

	s := New(cfg, newServices(t), zerolog.Nop())

	assert.Contains(t, s.Tools(), "deploy_template")
	assert.Equal(t, "paas-orchestrator", cfg.Name)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte("readonly: true\noverrides:\n  get_job:\n    description: Job details\n"))
	require.NoError(t, err)
	assert.True(t, cfg.ReadOnly)
	assert.Equal(t, "Job details", cfg.Overrides["get_job"].Description)

	_, err = ParseConfig([]byte("readonly: ["))
	assert.Error(t, err)
}
