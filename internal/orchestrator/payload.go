package orchestrator

import (
	"fmt"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/platform"
)

// ValidateSpec checks that a service carries what its main job needs.
func ValidateSpec(s model.ServiceSpec) error {
	if s.Name == "" {
		return fmt.Errorf("%w: service without a name", ErrInvalidService)
	}
	switch s.Type {
	case model.ServiceTypeApp:
		if s.Provider == nil || s.Provider.RepositoryURL == "" {
			return fmt.Errorf("%w: app %s needs a repository", ErrInvalidService, s.Name)
		}
	case model.ServiceTypeDocker:
		if s.Docker == nil || s.Docker.Image == "" {
			return fmt.Errorf("%w: docker service %s needs an image", ErrInvalidService, s.Name)
		}
	case model.ServiceTypeDatabase:
		if s.Database == nil || s.Database.Type == "" {
			return fmt.Errorf("%w: database %s needs a type", ErrInvalidService, s.Name)
		}
		if len(s.Variables) > 0 || len(s.Volumes) > 0 {
			return fmt.Errorf("%w: database %s takes no variables or volumes", ErrInvalidService, s.Name)
		}
	default:
		return fmt.Errorf("%w: service %s has unknown type %q", ErrInvalidService, s.Name, s.Type)
	}
	return nil
}

// NewService builds the record for a named spec.
func NewService(projectID string, s model.ServiceSpec) *model.Service {
	svc := &model.Service{
		ID:        platform.NewID(),
		ProjectID: projectID,
		Name:      s.Name,
		Type:      s.Type,
		Variables: append([]model.Variable(nil), s.Variables...),
		Volumes:   append([]model.Volume(nil), s.Volumes...),
	}
	if s.Provider != nil {
		p := *s.Provider
		svc.Provider = &p
	}
	if s.Docker != nil {
		d := *s.Docker
		svc.Docker = &d
	}
	if s.Database != nil {
		svc.Database = &model.DatabaseDetails{
			Type:         s.Database.Type,
			ExposedPorts: append([]string(nil), s.Database.ExposedPorts...),
		}
	}
	return svc
}

// JobSSH returns the connection details put into job payloads. The key is
// left out; workers load it from the server record.
func JobSSH(s *model.Server) model.SSHDetails {
	d := s.SSHDetails()
	d.PrivateKey = ""
	return d
}

// MainPayload builds the job that provisions svc itself.
func MainPayload(svc *model.Service, jc model.JobContext, ssh model.SSHDetails, vars []model.Variable) (model.JobPayload, error) {
	switch svc.Type {
	case model.ServiceTypeApp:
		if svc.Provider == nil {
			return nil, fmt.Errorf("%w: app %s needs a repository", ErrInvalidService, svc.Name)
		}
		return &model.DeployAppPayload{JobContext: jc, SSH: ssh, AppName: svc.Name, Provider: *svc.Provider, Variables: vars}, nil
	case model.ServiceTypeDocker:
		if svc.Docker == nil {
			return nil, fmt.Errorf("%w: docker service %s needs an image", ErrInvalidService, svc.Name)
		}
		return &model.DeployDockerPayload{JobContext: jc, SSH: ssh, AppName: svc.Name, Docker: *svc.Docker, Variables: vars}, nil
	case model.ServiceTypeDatabase:
		if svc.Database == nil {
			return nil, fmt.Errorf("%w: database %s needs a type", ErrInvalidService, svc.Name)
		}
		return &model.CreateDatabasePayload{JobContext: jc, SSH: ssh, DatabaseName: svc.Name, DatabaseType: svc.Database.Type}, nil
	}
	return nil, fmt.Errorf("%w: service %s has unknown type %q", ErrInvalidService, svc.Name, svc.Type)
}
