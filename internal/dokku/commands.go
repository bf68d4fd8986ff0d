// Package dokku holds the host command vocabulary. Every command the
// provisioning workers send to a server is built here.
package dokku

import (
	"fmt"
	"strings"

	"github.com/edvin/paas/internal/model"
)

// Quote wraps s in single quotes for a POSIX shell.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=@,+%", r)
}

func PluginList() string { return "dokku plugin:list" }

// PluginRepository is the git repository a named plugin is installed from.
func PluginRepository(name string) string {
	return fmt.Sprintf("https://github.com/dokku/dokku-%s.git", name)
}

func PluginInstall(name string) string {
	return fmt.Sprintf("sudo dokku plugin:install %s --name %s", Quote(PluginRepository(name)), Quote(name))
}

func ServiceExists(dbType, name string) string {
	return fmt.Sprintf("dokku %s:exists %s", dbType, Quote(name))
}

func ServiceCreate(dbType, name string) string {
	return fmt.Sprintf("dokku %s:create %s", dbType, Quote(name))
}

func ServiceDSN(dbType, name string) string {
	return fmt.Sprintf("dokku %s:info %s --dsn", dbType, Quote(name))
}

func ServiceExpose(dbType, name string, ports []string) string {
	quoted := make([]string, len(ports))
	for i, p := range ports {
		quoted[i] = Quote(p)
	}
	return fmt.Sprintf("dokku %s:expose %s %s", dbType, Quote(name), strings.Join(quoted, " "))
}

func ServiceDestroy(dbType, name string) string {
	return fmt.Sprintf("dokku --force %s:destroy %s", dbType, Quote(name))
}

// ServiceExport streams a dump of the database to stdout.
func ServiceExport(dbType, name string) string {
	return fmt.Sprintf("dokku %s:export %s", dbType, Quote(name))
}

func AppExists(app string) string { return "dokku apps:exists " + Quote(app) }

func AppCreate(app string) string { return "dokku apps:create " + Quote(app) }

func AppDestroy(app string) string { return "dokku --force apps:destroy " + Quote(app) }

// GitSync builds app from a remote repository.
func GitSync(app string, p model.ProviderSettings) string {
	cmd := fmt.Sprintf("dokku git:sync --build %s %s", Quote(app), Quote(p.RepositoryURL))
	if p.Branch != "" {
		cmd += " " + Quote(p.Branch)
	}
	return cmd
}

// BuildDir points the builder at a subdirectory of the repository.
func BuildDir(app, path string) string {
	return fmt.Sprintf("dokku builder:set %s build-dir %s", Quote(app), Quote(path))
}

func GitFromImage(app, image string) string {
	return fmt.Sprintf("dokku git:from-image %s %s", Quote(app), Quote(image))
}

// RegistryLogin reads the password from stdin so it never appears in the
// process list.
func RegistryLogin(r model.RegistryCredentials) string {
	return fmt.Sprintf("echo %s | dokku registry:login --password-stdin %s %s",
		Quote(r.Password), Quote(r.Server), Quote(r.Username))
}

func PortsSet(app string, ports []string) string {
	quoted := make([]string, len(ports))
	for i, p := range ports {
		quoted[i] = Quote(p)
	}
	return fmt.Sprintf("dokku ports:set %s %s", Quote(app), strings.Join(quoted, " "))
}

func ConfigSet(app string, vars []model.Variable, noRestart bool) string {
	var b strings.Builder
	b.WriteString("dokku config:set")
	if noRestart {
		b.WriteString(" --no-restart")
	}
	b.WriteString(" " + Quote(app))
	for _, v := range vars {
		b.WriteString(" " + Quote(v.Key+"="+v.Value))
	}
	return b.String()
}

func StorageEnsureDirectory(dir string) string {
	return "dokku storage:ensure-directory " + Quote(dir)
}

func StorageMount(app string, v model.Volume) string {
	return fmt.Sprintf("dokku storage:mount %s %s", Quote(app), Quote(v.HostPath+":"+v.ContainerPath))
}

func Restart(app string) string { return "dokku ps:restart " + Quote(app) }

// ParsePluginList reads `dokku plugin:list` output. Banner and warning
// lines are skipped.
func ParsePluginList(out string) []model.PluginInstallation {
	var plugins []model.PluginInstallation
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "=====>") || strings.HasPrefix(line, "!") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		status := fields[2]
		if status != model.PluginEnabled && status != model.PluginDisabled {
			continue
		}
		plugins = append(plugins, model.PluginInstallation{
			Name:    fields[0],
			Version: fields[1],
			Status:  status,
		})
	}
	return plugins
}
