package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/edvin/paas/internal/model"
	"github.com/edvin/paas/internal/platform"
)

// NameTaken reports whether a final service name is already in use.
type NameTaken func(ctx context.Context, name string) (bool, error)

// AssignNames picks a final name for every spec, in order. The base name is
// <project>-<service>; a random suffix is appended when the base is taken
// in the store or was already handed out earlier in the same run. The
// returned mapping goes from template-local name to final name.
func AssignNames(ctx context.Context, projectName string, specs []model.ServiceSpec, taken NameTaken) (map[string]string, error) {
	mapping := make(map[string]string, len(specs))
	assigned := make(map[string]bool, len(specs))
	check := func(ctx context.Context, name string) (bool, error) {
		if assigned[name] {
			return true, nil
		}
		return taken(ctx, name)
	}
	for _, s := range specs {
		if _, dup := mapping[s.Name]; dup {
			return nil, fmt.Errorf("duplicate service name %q in template", s.Name)
		}
		final, err := platform.UniqueName(ctx, BaseName(projectName, s.Name), check)
		if err != nil {
			return nil, fmt.Errorf("assign name for %s: %w", s.Name, err)
		}
		mapping[s.Name] = final
		assigned[final] = true
	}
	return mapping, nil
}

// BaseName is the unsuffixed final name of a service in a project.
func BaseName(projectName, serviceName string) string {
	return strings.ToLower(projectName + "-" + serviceName)
}

// Rewrite returns specs renamed through mapping with every variable
// reference rewritten to the final names.
func Rewrite(specs []model.ServiceSpec, mapping map[string]string) []model.ServiceSpec {
	out := make([]model.ServiceSpec, len(specs))
	for i, s := range specs {
		s.Variables = RewriteVariables(s.Variables, mapping)
		if final, ok := mapping[s.Name]; ok {
			s.Name = final
		}
		out[i] = s
	}
	return out
}
