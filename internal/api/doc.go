// Package api serves the orchestrator REST API under /api/v1, the event
// WebSocket stream, health probes and, when configured, the MCP endpoint.
//
// Mutating endpoints answer 202 Accepted with the queued job:
//
//	{"job_id": "deploy-app-svc-1", "queue": "server-srv-1-deploy-app", "deployment_id": "..."}
//
// Errors are {"error": "..."} with 400 for invalid input, 404 for unknown
// records, 409 when a queue is busy and 501 when the queue backend cannot
// be inspected.
package api
