package tooldefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of the tool-definitions YAML: a single
// `tools:` root mapping (§6, persisted state layout).
type catalogFile struct {
	Tools []Definition `yaml:"tools"`
}

// Registry is the in-memory tool-definition catalog, loaded from and
// persisted to a YAML file via atomic replace.
type Registry struct {
	mu      sync.RWMutex
	path    string
	order   []string
	byName  map[string]Definition
}

// NewRegistry loads path if it exists, or starts empty. The reserved `bash`
// definition is always present and is never written to disk.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:   path,
		byName: map[string]Definition{BashToolName: bashDefinition},
		order:  []string{BashToolName},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("tooldefs: read %s: %w", path, err)
	}
	var cat catalogFile
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("tooldefs: parse %s: %w", path, err)
	}
	for _, d := range cat.Tools {
		if d.Name == "" || d.Name == BashToolName {
			continue
		}
		if d.Binary == "" {
			return nil, fmt.Errorf("tooldefs: definition %q missing binary", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("tooldefs: duplicate definition name %q", d.Name)
		}
		r.byName[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Get returns a definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// List returns every definition in catalog order, bash included.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

// Put inserts or replaces a definition and persists the catalog. The `bash`
// name is reserved and cannot be mutated.
func (r *Registry) Put(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("tooldefs: definition name is required")
	}
	if d.Name == BashToolName {
		return fmt.Errorf("tooldefs: %q is a reserved definition and cannot be modified", BashToolName)
	}
	if d.Binary == "" {
		return fmt.Errorf("tooldefs: definition %q missing binary", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[d.Name]; !exists {
		r.order = append(r.order, d.Name)
	}
	r.byName[d.Name] = d
	return r.persistLocked()
}

// Delete removes a definition and persists the catalog. Deleting `bash`
// always fails.
func (r *Registry) Delete(name string) error {
	if name == BashToolName {
		return fmt.Errorf("tooldefs: %q is a reserved definition and cannot be deleted", BashToolName)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; !exists {
		return fmt.Errorf("tooldefs: no such definition %q", name)
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return r.persistLocked()
}

// persistLocked serializes the catalog (excluding bash) and writes it via
// write-temp + rename, following the atomic-replace pattern used throughout
// this server's persistence layer.
func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}
	cat := catalogFile{}
	for _, n := range r.order {
		if n == BashToolName {
			continue
		}
		cat.Tools = append(cat.Tools, r.byName[n])
	}
	data, err := yaml.Marshal(cat)
	if err != nil {
		return fmt.Errorf("tooldefs: marshal: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("tooldefs: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "tools-*.tmp")
	if err != nil {
		return fmt.Errorf("tooldefs: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tooldefs: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tooldefs: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tooldefs: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("tooldefs: rename: %w", err)
	}
	cleanup = false
	return nil
}
