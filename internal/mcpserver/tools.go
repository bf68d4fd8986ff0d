package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/edvin/paas/internal/core"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/plugin"
)

// tool is a ServerTool plus whether it changes anything.
type tool struct {
	server.ServerTool
	mutating bool
}

func buildTools(services *core.Services) []tool {
	return []tool{
		{ServerTool: server.ServerTool{
			Tool: mcp.NewTool("list_queues",
				mcp.WithDescription("List the job queues of a server"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("server_id", mcp.Required(), mcp.Description("Server ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := req.RequireString("server_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Queue.ListQueues(id))
			},
		}},
		{ServerTool: server.ServerTool{
			Tool: mcp.NewTool("queue_stats",
				mcp.WithDescription("Job counts by state for each queue of a server"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("server_id", mcp.Required(), mcp.Description("Server ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := req.RequireString("server_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Queue.GetQueueStats(id))
			},
		}},
		{ServerTool: server.ServerTool{
			Tool: mcp.NewTool("get_job",
				mcp.WithDescription("Show a job with its state, attempts, error and result"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("queue", mcp.Required(), mcp.Description("Queue name, e.g. server-<id>-deploy-app")),
				mcp.WithString("job_id", mcp.Required(), mcp.Description("Job ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				q, err := req.RequireString("queue")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				id, err := req.RequireString("job_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Queue.GetJob(q, id))
			},
		}},
		{ServerTool: server.ServerTool{
			Tool: mcp.NewTool("get_deployment",
				mcp.WithDescription("Show a deployment record with its status and log"),
				mcp.WithReadOnlyHintAnnotation(true),
				mcp.WithString("deployment_id", mcp.Required(), mcp.Description("Deployment ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := req.RequireString("deployment_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				d, err := services.Deployment.Get(ctx, id)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				if lines, err := services.Deployment.Logs(ctx, id); err == nil {
					d.Logs = lines
				}
				return result(d, nil)
			},
		}},
		{ServerTool: server.ServerTool{
			Tool: mcp.NewTool("list_templates",
				mcp.WithDescription("List the catalog templates that deploy_template accepts"),
				mcp.WithReadOnlyHintAnnotation(true),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				return result(services.Deployment.Templates(), nil)
			},
		}},
		{mutating: true, ServerTool: server.ServerTool{
			Tool: mcp.NewTool("trigger_deployment",
				mcp.WithDescription("Queue a deployment of a service. Returns the pending one when a deployment is already queued or running"),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithString("service_id", mcp.Required(), mcp.Description("Service ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := req.RequireString("service_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Deployment.Trigger(ctx, id))
			},
		}},
		{mutating: true, ServerTool: server.ServerTool{
			Tool: mcp.NewTool("deploy_template",
				mcp.WithDescription("Roll out a catalog template into a project"),
				mcp.WithString("template", mcp.Required(), mcp.Description("Template name")),
				mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				name, err := req.RequireString("template")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				projectID, err := req.RequireString("project_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Deployment.DeployTemplate(ctx, name, projectID))
			},
		}},
		{mutating: true, ServerTool: server.ServerTool{
			Tool: mcp.NewTool("create_database",
				mcp.WithDescription("Create a database on a server, installing its plugin first when missing"),
				mcp.WithString("server_id", mcp.Required(), mcp.Description("Server ID")),
				mcp.WithString("name", mcp.Required(), mcp.Description("Database name")),
				mcp.WithString("type", mcp.Required(), mcp.Description("Database type"),
					mcp.Enum(plugin.DefaultDatabaseTypes...)),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				serverID, err := req.RequireString("server_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				name, err := req.RequireString("name")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				dbType, err := req.RequireString("type")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Deployment.CreateDatabase(ctx, serverID, name, dbType, model.JobContext{}))
			},
		}},
		{mutating: true, ServerTool: server.ServerTool{
			Tool: mcp.NewTool("sync_plugins",
				mcp.WithDescription("Reconcile a server's plugin records with what the host reports"),
				mcp.WithIdempotentHintAnnotation(true),
				mcp.WithString("server_id", mcp.Required(), mcp.Description("Server ID")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				id, err := req.RequireString("server_id")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return result(services.Server.SyncPlugins(ctx, id))
			},
		}},
		{mutating: true, ServerTool: server.ServerTool{
			Tool: mcp.NewTool("flush_queue",
				mcp.WithDescription("Drop every job of a queue. Refuses while a job runs unless force is set"),
				mcp.WithDestructiveHintAnnotation(true),
				mcp.WithString("queue", mcp.Required(), mcp.Description("Queue name")),
				mcp.WithBoolean("force", mcp.Description("Also drop the queue while a job is running")),
			),
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				q, err := req.RequireString("queue")
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				force, _ := req.GetArguments()["force"].(bool)
				if err := services.Queue.FlushQueue(q, force); err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				return mcp.NewToolResultText(`{"status":"flushed"}`), nil
			},
		}},
	}
}

// result renders v as JSON, or err as a tool error the agent can read.
func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %s", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
