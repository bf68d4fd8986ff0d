package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/edvin/paas/internal/model"
)

var validate = validator.New()

type templateFile struct {
	Name        string              `yaml:"name" validate:"required"`
	Description string              `yaml:"description"`
	Services    []model.ServiceSpec `yaml:"services" validate:"required,min=1,dive"`
}

// Catalog holds the templates loaded from disk, keyed by name.
type Catalog struct {
	templates map[string]model.Template
}

// LoadCatalog parses every *.yaml and *.yml file in dir. A missing
// directory yields an empty catalog.
func LoadCatalog(dir string) (*Catalog, error) {
	c := &Catalog{templates: map[string]model.Template{}}
	if dir == "" {
		return c, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		t, err := parseFile(path)
		if err != nil {
			return nil, err
		}
		if _, dup := c.templates[t.Name]; dup {
			return nil, fmt.Errorf("template %q defined twice (%s)", t.Name, path)
		}
		c.templates[t.Name] = t
	}
	return c, nil
}

func parseFile(path string) (model.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Template{}, fmt.Errorf("read template %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes and validates one template document.
func Parse(data []byte, source string) (model.Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return model.Template{}, fmt.Errorf("parse template %s: %w", source, err)
	}
	if err := validate.Struct(f); err != nil {
		return model.Template{}, fmt.Errorf("invalid template %s: %w", source, err)
	}
	seen := map[string]bool{}
	for _, s := range f.Services {
		if seen[s.Name] {
			return model.Template{}, fmt.Errorf("invalid template %s: service %q listed twice", source, s.Name)
		}
		seen[s.Name] = true
		if s.Type == model.ServiceTypeDatabase && (s.Database == nil || s.Database.Type == "") {
			return model.Template{}, fmt.Errorf("invalid template %s: database service %q has no type", source, s.Name)
		}
	}
	return model.Template{Name: f.Name, Description: f.Description, Services: f.Services}, nil
}

// Get returns the named template.
func (c *Catalog) Get(name string) (model.Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// List returns all templates sorted by name.
func (c *Catalog) List() []model.Template {
	out := make([]model.Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
