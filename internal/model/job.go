package model

import (
	"encoding/json"
	"fmt"
)

// JobKind selects the provisioning worker that handles a job.
type JobKind string

const (
	JobCreateDatabase    JobKind = "create-database-with-plugins"
	JobDeployApp         JobKind = "deploy-app"
	JobDeployDocker      JobKind = "deploy-docker-image"
	JobDestroyResource   JobKind = "destroy-resource"
	JobUpdateEnvironment JobKind = "update-environment"
	JobUpdateVolumes     JobKind = "update-volumes"
	JobExposePort        JobKind = "expose-database-port"
	JobDeployTemplate    JobKind = "deploy-template"
	JobSyncPlugins       JobKind = "sync-plugins"
	JobBackupDatabase    JobKind = "backup-database"
)

// JobKinds lists every kind in a stable order.
var JobKinds = []JobKind{
	JobCreateDatabase,
	JobDeployApp,
	JobDeployDocker,
	JobDestroyResource,
	JobUpdateEnvironment,
	JobUpdateVolumes,
	JobExposePort,
	JobDeployTemplate,
	JobSyncPlugins,
	JobBackupDatabase,
}

// QueueName returns the queue a job of the given kind for a server runs on.
// Jobs on one queue run one at a time; distinct queues run in parallel.
func QueueName(serverID string, kind JobKind) string {
	return fmt.Sprintf("server-%s-%s", serverID, kind)
}

// QueuePrefix is the common prefix of every queue belonging to a server.
func QueuePrefix(serverID string) string {
	return fmt.Sprintf("server-%s-", serverID)
}

// JobPayload is implemented by one struct per JobKind.
type JobPayload interface {
	Kind() JobKind
	Context() JobContext
}

// JobContext names the records a job acts on and the channels it reports to.
type JobContext struct {
	TenantSlug   string `json:"tenant_slug"`
	ServerID     string `json:"server_id"`
	ProjectID    string `json:"project_id,omitempty"`
	ServiceID    string `json:"service_id,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// LogChannel is the event channel that receives the job's output lines.
func (c JobContext) LogChannel() string {
	switch {
	case c.DeploymentID != "":
		return c.DeploymentID
	case c.ServiceID != "":
		return "service-" + c.ServiceID
	default:
		return "server-" + c.ServerID
	}
}

type CreateDatabasePayload struct {
	JobContext
	SSH          SSHDetails `json:"ssh"`
	DatabaseName string     `json:"database_name"`
	DatabaseType string     `json:"database_type"`
}

type DeployAppPayload struct {
	JobContext
	SSH       SSHDetails       `json:"ssh"`
	AppName   string           `json:"app_name"`
	Provider  ProviderSettings `json:"provider"`
	Variables []Variable       `json:"variables,omitempty"`
}

type DeployDockerPayload struct {
	JobContext
	SSH       SSHDetails    `json:"ssh"`
	AppName   string        `json:"app_name"`
	Docker    DockerDetails `json:"docker"`
	Variables []Variable    `json:"variables,omitempty"`
}

type DestroyResourcePayload struct {
	JobContext
	SSH          SSHDetails  `json:"ssh"`
	Name         string      `json:"name"`
	ServiceType  ServiceType `json:"service_type"`
	DatabaseType string      `json:"database_type,omitempty"`
}

type UpdateEnvironmentPayload struct {
	JobContext
	SSH       SSHDetails `json:"ssh"`
	AppName   string     `json:"app_name"`
	Variables []Variable `json:"variables"`
	NoRestart bool       `json:"no_restart"`
}

type UpdateVolumesPayload struct {
	JobContext
	SSH     SSHDetails `json:"ssh"`
	AppName string     `json:"app_name"`
	Volumes []Volume   `json:"volumes"`
	Restart bool       `json:"restart"`
}

type ExposePortPayload struct {
	JobContext
	SSH          SSHDetails `json:"ssh"`
	DatabaseName string     `json:"database_name"`
	DatabaseType string     `json:"database_type"`
	Ports        []string   `json:"ports"`
}

type DeployTemplatePayload struct {
	JobContext
	Services []ServiceSpec `json:"services"`
}

type SyncPluginsPayload struct {
	JobContext
	SSH SSHDetails `json:"ssh"`
}

type BackupDatabasePayload struct {
	JobContext
	SSH          SSHDetails `json:"ssh"`
	DatabaseName string     `json:"database_name"`
	DatabaseType string     `json:"database_type"`
}

func (*CreateDatabasePayload) Kind() JobKind    { return JobCreateDatabase }
func (*DeployAppPayload) Kind() JobKind         { return JobDeployApp }
func (*DeployDockerPayload) Kind() JobKind      { return JobDeployDocker }
func (*DestroyResourcePayload) Kind() JobKind   { return JobDestroyResource }
func (*UpdateEnvironmentPayload) Kind() JobKind { return JobUpdateEnvironment }
func (*UpdateVolumesPayload) Kind() JobKind     { return JobUpdateVolumes }
func (*ExposePortPayload) Kind() JobKind        { return JobExposePort }
func (*DeployTemplatePayload) Kind() JobKind    { return JobDeployTemplate }
func (*SyncPluginsPayload) Kind() JobKind       { return JobSyncPlugins }
func (*BackupDatabasePayload) Kind() JobKind    { return JobBackupDatabase }

func (p *CreateDatabasePayload) Context() JobContext    { return p.JobContext }
func (p *DeployAppPayload) Context() JobContext         { return p.JobContext }
func (p *DeployDockerPayload) Context() JobContext      { return p.JobContext }
func (p *DestroyResourcePayload) Context() JobContext   { return p.JobContext }
func (p *UpdateEnvironmentPayload) Context() JobContext { return p.JobContext }
func (p *UpdateVolumesPayload) Context() JobContext     { return p.JobContext }
func (p *ExposePortPayload) Context() JobContext        { return p.JobContext }
func (p *DeployTemplatePayload) Context() JobContext    { return p.JobContext }
func (p *SyncPluginsPayload) Context() JobContext       { return p.JobContext }
func (p *BackupDatabasePayload) Context() JobContext    { return p.JobContext }

// NewJobPayload returns an empty payload for kind.
func NewJobPayload(kind JobKind) (JobPayload, error) {
	switch kind {
	case JobCreateDatabase:
		return &CreateDatabasePayload{}, nil
	case JobDeployApp:
		return &DeployAppPayload{}, nil
	case JobDeployDocker:
		return &DeployDockerPayload{}, nil
	case JobDestroyResource:
		return &DestroyResourcePayload{}, nil
	case JobUpdateEnvironment:
		return &UpdateEnvironmentPayload{}, nil
	case JobUpdateVolumes:
		return &UpdateVolumesPayload{}, nil
	case JobExposePort:
		return &ExposePortPayload{}, nil
	case JobDeployTemplate:
		return &DeployTemplatePayload{}, nil
	case JobSyncPlugins:
		return &SyncPluginsPayload{}, nil
	case JobBackupDatabase:
		return &BackupDatabasePayload{}, nil
	}
	return nil, fmt.Errorf("unknown job kind %q", kind)
}

// DecodeJobPayload unmarshals raw into the payload type for kind.
func DecodeJobPayload(kind JobKind, raw json.RawMessage) (JobPayload, error) {
	p, err := NewJobPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}
