package request

import "github.com/edvin/paas/internal/model"

type CreateServer struct {
	Name       string `json:"name"`
	Host       string `json:"host" validate:"required,hostname_rfc1123|ip"`
	Port       int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username   string `json:"username"`
	PrivateKey string `json:"private_key"`
	TenantSlug string `json:"tenant_slug" validate:"required,slug"`
}

type CreateProject struct {
	Name       string `json:"name" validate:"required,slug"`
	ServerID   string `json:"server_id" validate:"required"`
	TenantSlug string `json:"tenant_slug" validate:"omitempty,slug"`
}

type CreateService struct {
	ProjectID string            `json:"project_id" validate:"required"`
	Service   model.ServiceSpec `json:"service"`
}

type Variables struct {
	Variables []Variable `json:"variables" validate:"dive"`
	Restart   bool       `json:"restart"`
}

type Variable struct {
	Key   string `json:"key" validate:"required,excludes=="`
	Value string `json:"value"`
}

type Volumes struct {
	Volumes []Volume `json:"volumes" validate:"required,min=1,dive"`
	Restart bool     `json:"restart"`
}

type Volume struct {
	HostPath      string `json:"host_path" validate:"required"`
	ContainerPath string `json:"container_path" validate:"required,startswith=/"`
}

type Ports struct {
	Ports []string `json:"ports" validate:"required,min=1,dive,port"`
}

type TemplateDeployment struct {
	Services   []model.ServiceSpec `json:"services" validate:"required,min=1,dive"`
	ServerID   string              `json:"server_id"`
	TenantSlug string              `json:"tenant_slug" validate:"omitempty,slug"`
}

type CreateDatabase struct {
	Name      string `json:"name" validate:"required,slug"`
	Type      string `json:"type" validate:"required,oneof=postgres mysql mariadb mongo redis clickhouse rabbitmq elasticsearch"`
	ProjectID string `json:"project_id"`
	ServiceID string `json:"service_id"`
}

func ToVariables(in []Variable) []model.Variable {
	out := make([]model.Variable, len(in))
	for i, v := range in {
		out[i] = model.Variable{Key: v.Key, Value: v.Value}
	}
	return out
}

func ToVolumes(in []Volume) []model.Volume {
	out := make([]model.Volume, len(in))
	for i, v := range in {
		out[i] = model.Volume{HostPath: v.HostPath, ContainerPath: v.ContainerPath}
	}
	return out
}
