package template

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m-aliabbas/birthday-wisher/pkg/types"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Registry enumerates and loads templates.
type Registry interface {
	// ListTemplates returns template IDs in ascending order
	ListTemplates() ([]TemplateID, error)

	// Load returns the resolved config for id
	Load(id TemplateID) (*TemplateConfig, error)
}

// Store is a Registry that can persist edited configs.
type Store interface {
	Registry
	Save(id TemplateID, cfg *TemplateConfig) error
}

// FSRegistry treats each subdirectory of Root holding a config file as a template.
type FSRegistry struct {
	Root string
}

// NewFSRegistry creates a registry rooted at dir
func NewFSRegistry(root string) *FSRegistry {
	return &FSRegistry{Root: root}
}

func (r *FSRegistry) ListTemplates() ([]TemplateID, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "list templates in %s", r.Root)
	}

	ids := make([]TemplateID, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, _, err := FindConfigFile(filepath.Join(r.Root, entry.Name())); err != nil {
			continue
		}
		ids = append(ids, TemplateID(entry.Name()))
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *FSRegistry) Load(id TemplateID) (*TemplateConfig, error) {
	dir, err := r.Dir(id)
	if err != nil {
		return nil, err
	}
	return Resolve(dir)
}

// Dir returns the directory of template id.
func (r *FSRegistry) Dir(id TemplateID) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(r.Root, string(id)), nil
}

// Save writes cfg as template.json in the template's directory. An existing
// YAML config is left untouched but template.json takes precedence from then on.
func (r *FSRegistry) Save(id TemplateID, cfg *TemplateConfig) error {
	dir, err := r.Dir(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create template dir %s", dir)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, ConfigFiles[0])
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}

// MemoryRegistry keeps configs in memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	configs map[TemplateID]TemplateConfig
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{configs: make(map[TemplateID]TemplateConfig)}
}

// Register adds or replaces a template
func (r *MemoryRegistry) Register(id TemplateID, cfg TemplateConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg.ID = id
	r.configs[id] = cfg
}

func (r *MemoryRegistry) ListTemplates() ([]TemplateID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]TemplateID, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *MemoryRegistry) Load(id TemplateID) (*TemplateConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, errors.Wrapf(types.ErrConfigNotFound, "template %q", id)
	}
	return &cfg, nil
}

func (r *MemoryRegistry) Save(id TemplateID, cfg *TemplateConfig) error {
	if err := checkID(id); err != nil {
		return err
	}
	r.Register(id, *cfg)
	return nil
}

func checkID(id TemplateID) error {
	s := string(id)
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return errors.Wrapf(types.ErrConfigNotFound, "invalid template id %q", s)
	}
	return nil
}
