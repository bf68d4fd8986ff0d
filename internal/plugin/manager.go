package plugin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/paas/internal/dokku"
	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/remote"
)

// InstallError names the plugin whose installation failed.
type InstallError struct {
	Plugin string
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install plugin %s: %v", e.Plugin, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// ServerStore is the part of the record store the manager writes to.
type ServerStore interface {
	GetServer(ctx context.Context, id string) (*model.Server, error)
	UpdateServerPlugins(ctx context.Context, serverID string, plugins []model.PluginInstallation) error
}

type Manager struct {
	registry *Registry
	servers  ServerStore
	logger   zerolog.Logger
}

func NewManager(registry *Registry, servers ServerStore, logger zerolog.Logger) *Manager {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Manager{
		registry: registry,
		servers:  servers,
		logger:   logger.With().Str("component", "plugin").Logger(),
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

func (m *Manager) RequiredPlugins(category, typ string) []string {
	return m.registry.RequiredPlugins(category, typ)
}

// ListInstalled asks the host which plugins it has.
func (m *Manager) ListInstalled(ctx context.Context, conn remote.Conn) ([]model.PluginInstallation, error) {
	res, err := conn.Run(ctx, dokku.PluginList(), remote.Streams{})
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	return dokku.ParsePluginList(res.Stdout), nil
}

// CheckInstalled reports for each name whether the host has it installed.
func (m *Manager) CheckInstalled(ctx context.Context, conn remote.Conn, names []string) (map[string]bool, error) {
	installed, err := m.ListInstalled(ctx, conn)
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(installed))
	for _, p := range installed {
		present[p.Name] = true
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = present[n]
	}
	return out, nil
}

// InstallMissing installs names one after another. The first failure stops
// the remaining installs.
func (m *Manager) InstallMissing(ctx context.Context, conn remote.Conn, names []string, onLine func(string)) error {
	for _, name := range names {
		m.logger.Info().Str("plugin", name).Msg("installing plugin")
		if onLine != nil {
			onLine(fmt.Sprintf("-----> Installing plugin %s", name))
		}
		if _, err := conn.Run(ctx, dokku.PluginInstall(name), remote.Combined(onLine)); err != nil {
			m.logger.Error().Err(err).Str("plugin", name).Msg("plugin install failed")
			return &InstallError{Plugin: name, Err: err}
		}
	}
	return nil
}

// Sync reconciles the server record with the host. Plugins still present
// keep their stored configuration; new ones start empty; removed ones are
// dropped.
func (m *Manager) Sync(ctx context.Context, conn remote.Conn, serverID string) ([]model.PluginInstallation, error) {
	installed, err := m.ListInstalled(ctx, conn)
	if err != nil {
		return nil, err
	}
	server, err := m.servers.GetServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("sync plugins: %w", err)
	}

	merged := Merge(server.Plugins, installed)
	if err := m.servers.UpdateServerPlugins(ctx, serverID, merged); err != nil {
		return nil, fmt.Errorf("sync plugins: %w", err)
	}
	m.logger.Debug().Str("server_id", serverID).Int("plugins", len(merged)).Msg("plugins synced")
	return merged, nil
}

// Merge combines the stored plugin list with what the host reports.
func Merge(stored, host []model.PluginInstallation) []model.PluginInstallation {
	byName := make(map[string]model.PluginInstallation, len(stored))
	for _, p := range stored {
		byName[p.Name] = p
	}
	merged := make([]model.PluginInstallation, 0, len(host))
	for _, h := range host {
		cfg := map[string]string{}
		if prev, ok := byName[h.Name]; ok && prev.Configuration != nil {
			cfg = prev.Configuration
		}
		merged = append(merged, model.PluginInstallation{
			Name:          h.Name,
			Status:        h.Status,
			Version:       h.Version,
			Configuration: cfg,
		})
	}
	return merged
}

// Ensure installs whichever of names the host lacks, then syncs the server
// record. Sync runs even when an install fails so plugins that did install
// are recorded.
func (m *Manager) Ensure(ctx context.Context, conn remote.Conn, serverID string, names []string, onLine func(string)) error {
	if len(names) == 0 {
		return nil
	}
	status, err := m.CheckInstalled(ctx, conn, names)
	if err != nil {
		return err
	}
	var missing []string
	for _, n := range names {
		if !status[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	installErr := m.InstallMissing(ctx, conn, missing, onLine)
	if _, err := m.Sync(ctx, conn, serverID); err != nil {
		if installErr != nil {
			m.logger.Error().Err(err).Str("server_id", serverID).Msg("plugin sync after failed install")
			return installErr
		}
		return err
	}
	return installErr
}
