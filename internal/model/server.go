package model

import "time"

// Server is a target host that services are provisioned on.
type Server struct {
	ID         string `json:"id" db:"id"`
	Name       string `json:"name" db:"name"`
	Host       string `json:"host" db:"host"`
	Port       int    `json:"port" db:"port"`
	Username   string `json:"username" db:"username"`
	PrivateKey string `json:"-" db:"private_key"`
	TenantSlug string `json:"tenant_slug" db:"tenant_slug"`

	Plugins []PluginInstallation `json:"plugins" db:"plugins"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SSHDetails returns the connection details for the server.
func (s *Server) SSHDetails() SSHDetails {
	return SSHDetails{
		ServerID:   s.ID,
		Host:       s.Host,
		Port:       s.Port,
		Username:   s.Username,
		PrivateKey: s.PrivateKey,
	}
}

// SSHDetails identifies a host and how to authenticate to it. The private
// key never leaves the process in job payloads; workers reload it by ServerID.
type SSHDetails struct {
	ServerID   string `json:"server_id"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	PrivateKey string `json:"-"`
}

// PluginInstallation records one provisioning plugin installed on a server.
type PluginInstallation struct {
	Name          string            `json:"name"`
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	Configuration map[string]string `json:"configuration"`
}

type Project struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	ServerID   string    `json:"server_id" db:"server_id"`
	TenantSlug string    `json:"tenant_slug" db:"tenant_slug"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Template is a reusable multi-service blueprint.
type Template struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Services    []ServiceSpec `json:"services" yaml:"services"`
}
