package leaf

import (
	"sort"
	"sync"
	"time"

	"github.com/darianrosebrook/cortex/internal/types"
)

// Resolver is the narrow lookup interface consumed by the compiler and, at
// compile time only, bound into executable trees. Both the validation pass
// and the eventual invocation go through the same Resolve call, so the
// version chosen at compile time is exactly the version invoked at run time.
type Resolver interface {
	// Resolve returns the leaf registered under name@version. When version
	// is empty it returns the highest registered version for name.
	Resolve(name, version string) (*Leaf, error)

	// List returns all registered leaves for diagnostics and discovery.
	List() []*Leaf
}

// Registry is the process-wide leaf lookup table. It is constructed
// explicitly (no ambient state) so tests can instantiate isolated registries
// per case. Registration writes are serialized; resolution reads proceed
// concurrently.
type Registry struct {
	mu     sync.RWMutex
	leaves map[string]map[string]*Leaf // name -> version -> leaf
}

// NewRegistry creates an empty leaf registry.
func NewRegistry() *Registry {
	return &Registry{
		leaves: make(map[string]map[string]*Leaf),
	}
}

// Register adds a leaf to the registry. It returns DuplicateLeafError if the
// leaf's name@version is already present, and a validation error if the
// descriptor is malformed or the effector is nil.
func (r *Registry) Register(l *Leaf) error {
	if l == nil {
		return types.NewError(types.LEAF_INVALID, "leaf cannot be nil")
	}
	if err := l.Descriptor.Validate(); err != nil {
		return err
	}
	if l.Effector == nil {
		return types.NewError(types.LEAF_INVALID,
			"leaf "+l.Name+"@"+l.Version+" has no bound effector")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	versions := r.leaves[l.Name]
	if versions == nil {
		versions = make(map[string]*Leaf)
		r.leaves[l.Name] = versions
	}

	if _, exists := versions[l.Version]; exists {
		return &DuplicateLeafError{Name: l.Name, Version: l.Version}
	}

	if l.RegisteredAt.IsZero() {
		l.RegisteredAt = time.Now()
	}
	versions[l.Version] = l

	return nil
}

// Resolve returns the leaf registered under name@version, or the highest
// registered version for name when version is empty. It returns
// MissingLeafError when no match exists; for empty-version lookups against
// an unknown name the error's Version field is "any".
func (r *Registry) Resolve(name, version string) (*Leaf, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions := r.leaves[name]
	if len(versions) == 0 {
		if version == "" {
			return nil, &MissingLeafError{Name: name, Version: "any"}
		}
		return nil, &MissingLeafError{Name: name, Version: version}
	}

	if version != "" {
		l, exists := versions[version]
		if !exists {
			return nil, &MissingLeafError{Name: name, Version: version}
		}
		return l, nil
	}

	var latest *Leaf
	for _, l := range versions {
		if latest == nil || types.CompareVersions(l.Version, latest.Version) > 0 {
			latest = l
		}
	}
	return latest, nil
}

// List returns all registered leaves, sorted by name then descending version.
func (r *Registry) List() []*Leaf {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Leaf, 0, len(r.leaves))
	for _, versions := range r.leaves {
		for _, l := range versions {
			all = append(all, l)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return types.CompareVersions(all[i].Version, all[j].Version) > 0
	})

	return all
}

// Count returns the total number of registered leaves across all versions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, versions := range r.leaves {
		count += len(versions)
	}
	return count
}

// RegistryStats provides a point-in-time summary of the registry.
type RegistryStats struct {
	// Names is the number of distinct leaf names.
	Names int

	// Versions is the total number of registered name@version entries.
	Versions int

	// LatestVersions maps each name to its highest registered version.
	LatestVersions map[string]string
}

// Stats returns a snapshot of registry contents for diagnostics.
func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{
		Names:          len(r.leaves),
		LatestVersions: make(map[string]string, len(r.leaves)),
	}

	for name, versions := range r.leaves {
		stats.Versions += len(versions)
		latest := ""
		for version := range versions {
			if latest == "" || types.CompareVersions(version, latest) > 0 {
				latest = version
			}
		}
		stats.LatestVersions[name] = latest
	}

	return stats
}
