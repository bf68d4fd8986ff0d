// Package cli holds the pieces of paasctl that are not command wiring:
// saved orchestrator profiles and the API client.
package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "paas"
	configFileName = "config.yaml"
)

// Profile is a saved orchestrator endpoint.
type Profile struct {
	Name   string `yaml:"-"`
	APIURL string `yaml:"api_url"`
}

// file is the on-disk layout of ~/.config/paas/config.yaml.
type file struct {
	Active   string              `yaml:"active,omitempty"`
	Profiles map[string]*Profile `yaml:"profiles,omitempty"`
}

// configPath honours XDG_CONFIG_HOME and falls back to ~/.config.
func configPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, configDirName, configFileName), nil
}

func load() (*file, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	f := &file{Profiles: map[string]*Profile{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]*Profile{}
	}
	for name, p := range f.Profiles {
		p.Name = name
	}
	return f, nil
}

func (f *file) save() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// SaveProfile stores an endpoint under name, replacing any profile of the
// same name.
func SaveProfile(name, apiURL string) (*Profile, error) {
	name = sanitizeName(name)
	if name == "" {
		return nil, errors.New("profile name is empty")
	}
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid api url %q", apiURL)
	}

	f, err := load()
	if err != nil {
		return nil, err
	}
	p := &Profile{Name: name, APIURL: strings.TrimRight(apiURL, "/")}
	f.Profiles[name] = p
	if err := f.save(); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProfiles returns saved profiles sorted by name.
func ListProfiles() ([]Profile, error) {
	f, err := load()
	if err != nil {
		return nil, err
	}
	out := make([]Profile, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func LoadProfile(name string) (*Profile, error) {
	f, err := load()
	if err != nil {
		return nil, err
	}
	p, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, nil
}

// DeleteProfile removes a profile and clears it if it was active.
func DeleteProfile(name string) error {
	f, err := load()
	if err != nil {
		return err
	}
	if _, ok := f.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	delete(f.Profiles, name)
	if f.Active == name {
		f.Active = ""
	}
	return f.save()
}

func SetActive(name string) error {
	f, err := load()
	if err != nil {
		return err
	}
	if _, ok := f.Profiles[name]; !ok {
		return fmt.Errorf("profile %q not found", name)
	}
	f.Active = name
	return f.save()
}

// GetActive returns the active profile name, empty when none is set.
func GetActive() (string, error) {
	f, err := load()
	if err != nil {
		return "", err
	}
	return f.Active, nil
}

// ResolveAPIURL picks the endpoint: an explicit value, then the active
// profile, then fallback.
func ResolveAPIURL(explicit, fallback string) string {
	if explicit != "" {
		return strings.TrimRight(explicit, "/")
	}
	f, err := load()
	if err == nil && f.Active != "" {
		if p, ok := f.Profiles[f.Active]; ok {
			return p.APIURL
		}
	}
	return strings.TrimRight(fallback, "/")
}

func sanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, name)
	return strings.Trim(name, "-")
}
