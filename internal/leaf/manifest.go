package leaf

import (
	"fmt"
	"os"
	"time"

	"github.com/darianrosebrook/cortex/internal/types"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML form of a set of leaf descriptors. Effectors are not
// part of the manifest; they are bound by name at load time from the hosting
// process's effector table.
//
// Example:
//
//	leaves:
//	  - name: move_to
//	    version: 1.0.0
//	    default_timeout: 30s
//	    input:
//	      - {name: x, type: number, required: true}
//	      - {name: y, type: number, required: true}
//	    permissions: [movement]
type Manifest struct {
	Leaves []Descriptor `yaml:"leaves"`
}

// UnmarshalYAML decodes a descriptor, accepting Go duration syntax ("30s")
// for default_timeout.
func (d *Descriptor) UnmarshalYAML(value *yaml.Node) error {
	type plain struct {
		Name           string      `yaml:"name"`
		Version        string      `yaml:"version"`
		Description    string      `yaml:"description"`
		InputSchema    []ParamSpec `yaml:"input"`
		OutputSchema   []ParamSpec `yaml:"output"`
		Permissions    []string    `yaml:"permissions"`
		DefaultTimeout string      `yaml:"default_timeout"`
	}
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}

	d.Name = p.Name
	d.Version = p.Version
	d.Description = p.Description
	d.InputSchema = p.InputSchema
	d.OutputSchema = p.OutputSchema
	d.Permissions = p.Permissions
	d.DefaultTimeout = 0
	if p.DefaultTimeout != "" {
		timeout, err := time.ParseDuration(p.DefaultTimeout)
		if err != nil {
			return fmt.Errorf("leaf %s has invalid default_timeout %q: %w", p.Name, p.DefaultTimeout, err)
		}
		d.DefaultTimeout = timeout
	}
	return nil
}

// ParseManifest decodes a manifest from raw YAML bytes and validates every
// descriptor in it.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, types.WrapError(types.LEAF_INVALID, "failed to parse leaf manifest", err)
	}
	if len(manifest.Leaves) == 0 {
		return nil, types.NewError(types.LEAF_INVALID, "leaf manifest declares no leaves")
	}
	for i := range manifest.Leaves {
		if err := manifest.Leaves[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &manifest, nil
}

// LoadManifest reads and parses a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, types.WrapError(types.LEAF_INVALID,
			fmt.Sprintf("failed to read leaf manifest %s", path), err)
	}
	return ParseManifest(data)
}

// Binder resolves an effector implementation for a leaf name. The second
// return value reports whether an implementation exists.
type Binder func(name string) (Effector, bool)

// RegisterManifest binds each manifest descriptor to its effector and
// registers the result. Registration stops at the first error; nothing is
// rolled back, matching the registry's append-only model.
func (r *Registry) RegisterManifest(manifest *Manifest, bind Binder) error {
	if manifest == nil {
		return types.NewError(types.LEAF_INVALID, "leaf manifest cannot be nil")
	}
	for _, descriptor := range manifest.Leaves {
		effector, ok := bind(descriptor.Name)
		if !ok {
			return types.NewError(types.LEAF_INVALID,
				"no effector implementation for leaf "+descriptor.Name)
		}
		if err := r.Register(New(descriptor, effector)); err != nil {
			return err
		}
	}
	return nil
}
