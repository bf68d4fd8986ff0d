package model

import (
	"strconv"
	"time"
)

// ServiceType is the kind of resource a service provisions.
type ServiceType string

const (
	ServiceTypeApp      ServiceType = "app"
	ServiceTypeDocker   ServiceType = "docker"
	ServiceTypeDatabase ServiceType = "database"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceTypeApp, ServiceTypeDocker, ServiceTypeDatabase:
		return true
	}
	return false
}

// Variable is one environment entry. Value may contain reference
// expressions such as {{ db.DATABASE_URI }}.
type Variable struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// Volume is a host directory mounted into the service container.
type Volume struct {
	HostPath      string `json:"host_path" yaml:"host_path"`
	ContainerPath string `json:"container_path" yaml:"container_path"`
}

// ProviderSettings describes where an app's source is built from.
type ProviderSettings struct {
	Type          string `json:"type,omitempty" yaml:"type,omitempty"`
	RepositoryURL string `json:"repository_url" yaml:"repository_url"`
	Branch        string `json:"branch,omitempty" yaml:"branch,omitempty"`
	BuildPath     string `json:"build_path,omitempty" yaml:"build_path,omitempty"`
}

// RegistryCredentials authenticate image pulls from a private registry.
type RegistryCredentials struct {
	Server   string `json:"server" yaml:"server"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

type DockerDetails struct {
	Image    string               `json:"image" yaml:"image"`
	Registry *RegistryCredentials `json:"registry,omitempty" yaml:"registry,omitempty"`
	Ports    []string             `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// ConnectionInfo is parsed from the host after a database is created.
type ConnectionInfo struct {
	URI      string `json:"uri"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Name     string `json:"name"`
}

type DatabaseDetails struct {
	Type         string          `json:"type" yaml:"type"`
	ExposedPorts []string        `json:"exposed_ports,omitempty" yaml:"exposed_ports,omitempty"`
	Connection   *ConnectionInfo `json:"connection,omitempty" yaml:"-"`
}

type Service struct {
	ID        string      `json:"id" db:"id"`
	ProjectID string      `json:"project_id" db:"project_id"`
	Name      string      `json:"name" db:"name"`
	Type      ServiceType `json:"type" db:"type"`

	Provider *ProviderSettings `json:"provider,omitempty" db:"provider"`
	Docker   *DockerDetails    `json:"docker,omitempty" db:"docker"`
	Database *DatabaseDetails  `json:"database,omitempty" db:"database"`

	Variables []Variable `json:"variables" db:"variables"`
	// PopulatedVariables holds Variables with every reference expression
	// resolved. It is written by the environment update job.
	PopulatedVariables []Variable `json:"populated_variables,omitempty" db:"populated_variables"`
	Volumes            []Volume   `json:"volumes,omitempty" db:"volumes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Variables exposed by every database service to reference expressions.
const (
	VarDatabaseURI      = "DATABASE_URI"
	VarDatabaseName     = "DATABASE_NAME"
	VarDatabaseUsername = "DATABASE_USERNAME"
	VarDatabasePassword = "DATABASE_PASSWORD"
	VarDatabaseHost     = "DATABASE_HOST"
	VarDatabasePort     = "DATABASE_PORT"
)

// ReferenceValue returns the value another service sees when it references
// key on this service.
func (s *Service) ReferenceValue(key string) (string, bool) {
	if s.Database != nil && s.Database.Connection != nil {
		c := s.Database.Connection
		switch key {
		case VarDatabaseURI:
			return c.URI, true
		case VarDatabaseName:
			return c.Name, true
		case VarDatabaseUsername:
			return c.Username, true
		case VarDatabasePassword:
			return c.Password, true
		case VarDatabaseHost:
			return c.Host, true
		case VarDatabasePort:
			return strconv.Itoa(c.Port), true
		}
	}
	vars := s.PopulatedVariables
	if len(vars) == 0 {
		vars = s.Variables
	}
	for _, v := range vars {
		if v.Key == key {
			return v.Value, true
		}
	}
	return "", false
}

// ServiceSpec is a service description without a concrete name, as found
// in templates and saved architectures.
type ServiceSpec struct {
	Name      string            `json:"name" yaml:"name" validate:"required"`
	Type      ServiceType       `json:"type" yaml:"type" validate:"required,oneof=app docker database"`
	Provider  *ProviderSettings `json:"provider,omitempty" yaml:"provider,omitempty"`
	Docker    *DockerDetails    `json:"docker,omitempty" yaml:"docker,omitempty"`
	Database  *DatabaseDetails  `json:"database,omitempty" yaml:"database,omitempty"`
	Variables []Variable        `json:"variables,omitempty" yaml:"variables,omitempty"`
	Volumes   []Volume          `json:"volumes,omitempty" yaml:"volumes,omitempty"`
}
