package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/schema/validator"

	"gopkg.in/yaml.v3"
)

// ErrTemplateNotFound is returned when a template id is not in the catalog.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed catalog/*.yaml
var builtinCatalog embed.FS

// Registry is an immutable catalog of post templates.
type Registry struct {
	byID    map[string]domain.PostTemplate
	ordered []domain.PostTemplate
}

// NewRegistry validates the given templates and builds a registry over them.
func NewRegistry(templates ...domain.PostTemplate) (*Registry, error) {
	registry := &Registry{
		byID:    make(map[string]domain.PostTemplate, len(templates)),
		ordered: make([]domain.PostTemplate, 0, len(templates)),
	}
	for _, tpl := range templates {
		checked, err := validator.ValidateTemplate(tpl)
		if err != nil {
			return nil, err
		}
		if _, exists := registry.byID[checked.ID]; exists {
			return nil, fmt.Errorf("duplicate template id %s", checked.ID)
		}
		registry.byID[checked.ID] = checked
		registry.ordered = append(registry.ordered, checked)
	}
	sort.Slice(registry.ordered, func(i, j int) bool {
		return registry.ordered[i].ID < registry.ordered[j].ID
	})
	return registry, nil
}

// Builtin returns the registry backed by the embedded catalog.
func Builtin() (*Registry, error) {
	sub, err := fs.Sub(builtinCatalog, "catalog")
	if err != nil {
		return nil, fmt.Errorf("failed to open builtin catalog: %w", err)
	}
	return Load(sub)
}

// Load reads every *.yaml file in fsys and builds a registry from them.
func Load(fsys fs.FS) (*Registry, error) {
	templates, err := LoadCatalog(fsys)
	if err != nil {
		return nil, err
	}
	return NewRegistry(templates...)
}

// LoadDir is Load over a directory on disk. An empty dir selects the builtin
// catalog.
func LoadDir(dir string) (*Registry, error) {
	if strings.TrimSpace(dir) == "" {
		return Builtin()
	}
	return Load(os.DirFS(dir))
}

// LoadCatalog decodes the YAML template files in fsys, in file name order.
func LoadCatalog(fsys fs.FS) ([]domain.PostTemplate, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read template catalog: %w", err)
	}

	var templates []domain.PostTemplate
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}
		var tpl domain.PostTemplate
		if err := yaml.Unmarshal(raw, &tpl); err != nil {
			return nil, fmt.Errorf("failed to decode template %s: %w", entry.Name(), err)
		}
		templates = append(templates, tpl)
	}

	if len(templates) == 0 {
		return nil, errors.New("template catalog is empty")
	}
	return templates, nil
}

// List returns every template sorted by id.
func (r *Registry) List() []domain.PostTemplate {
	out := make([]domain.PostTemplate, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Get returns the template with the given id.
func (r *Registry) Get(id string) (domain.PostTemplate, error) {
	tpl, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.PostTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return tpl, nil
}
