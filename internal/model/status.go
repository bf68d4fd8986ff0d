package model

// Deployment status constants.
const (
	DeploymentQueued   = "queued"
	DeploymentBuilding = "building"
	DeploymentSuccess  = "success"
	DeploymentFailed   = "failed"
)

// Plugin status constants.
const (
	PluginEnabled  = "enabled"
	PluginDisabled = "disabled"
)

// Backup status constants.
const (
	BackupRunning   = "running"
	BackupCompleted = "completed"
	BackupFailed    = "failed"
)

// ActionRefresh tells dashboards subscribed to a tenant channel to re-fetch state.
const ActionRefresh = "refresh"

// IsTerminalDeploymentStatus reports whether a deployment can no longer change.
func IsTerminalDeploymentStatus(status string) bool {
	return status == DeploymentSuccess || status == DeploymentFailed
}
