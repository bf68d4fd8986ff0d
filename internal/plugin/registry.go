// Package plugin makes sure the host plugins a resource needs are installed
// and keeps a server's plugin record in step with the host.
package plugin

import "sort"

// Categories of resources that may need host plugins.
const (
	CategoryDatabase = "database"
	CategoryDocker   = "docker"
	CategoryApp      = "app"
)

// Key selects a registry entry by exact match.
type Key struct {
	Category string
	Type     string
}

// Registry maps resource kinds to the plugins they require.
type Registry struct {
	entries map[Key][]string
}

// DefaultDatabaseTypes are the database engines provisioned through a plugin
// of the same name.
var DefaultDatabaseTypes = []string{
	"postgres", "mysql", "mariadb", "mongo", "redis", "clickhouse", "rabbitmq", "elasticsearch",
}

func NewRegistry(entries map[Key][]string) *Registry {
	r := &Registry{entries: make(map[Key][]string, len(entries))}
	for k, v := range entries {
		r.entries[k] = append([]string(nil), v...)
	}
	return r
}

// DefaultRegistry requires one plugin per database engine and nothing for
// apps or docker images.
func DefaultRegistry() *Registry {
	entries := make(map[Key][]string, len(DefaultDatabaseTypes))
	for _, t := range DefaultDatabaseTypes {
		entries[Key{Category: CategoryDatabase, Type: t}] = []string{t}
	}
	return NewRegistry(entries)
}

// RequiredPlugins returns the plugins for (category, typ), or nil.
func (r *Registry) RequiredPlugins(category, typ string) []string {
	return append([]string(nil), r.entries[Key{Category: category, Type: typ}]...)
}

// SupportsDatabase reports whether typ is a registered database engine.
func (r *Registry) SupportsDatabase(typ string) bool {
	_, ok := r.entries[Key{Category: CategoryDatabase, Type: typ}]
	return ok
}

// DatabaseTypes lists registered database engines in sorted order.
func (r *Registry) DatabaseTypes() []string {
	var out []string
	for k := range r.entries {
		if k.Category == CategoryDatabase {
			out = append(out, k.Type)
		}
	}
	sort.Strings(out)
	return out
}
