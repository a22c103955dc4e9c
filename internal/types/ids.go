package types

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/mod/semver"
)

// RunID identifies a single execution of a compiled tree. Each invocation
// owns exactly one RunID; two concurrent runs of the same capability never
// share one.
type RunID string

// NewRunID generates a new UUID v4 and returns it as a RunID.
func NewRunID() RunID {
	return RunID(uuid.New().String())
}

// String returns the string representation of the RunID.
func (id RunID) String() string {
	return string(id)
}

// IsZero checks if the RunID is empty.
func (id RunID) IsZero() bool {
	return id == ""
}

// VersionedID identifies a versioned entity (leaf or capability) by
// name plus semantic version, rendered as "name@version".
type VersionedID struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// NewVersionedID constructs a VersionedID after validating both parts.
func NewVersionedID(name, version string) (VersionedID, error) {
	id := VersionedID{Name: name, Version: version}
	if err := id.Validate(); err != nil {
		return VersionedID{}, err
	}
	return id, nil
}

// ParseVersionedID parses a "name@version" string into a VersionedID.
func ParseVersionedID(s string) (VersionedID, error) {
	name, version, found := strings.Cut(s, "@")
	if !found {
		return VersionedID{}, fmt.Errorf("versioned id %q missing '@' separator", s)
	}
	return NewVersionedID(name, version)
}

// Validate checks that the name is non-empty and the version is valid semver.
func (id VersionedID) Validate() error {
	if id.Name == "" {
		return fmt.Errorf("versioned id name cannot be empty")
	}
	if !IsValidVersion(id.Version) {
		return fmt.Errorf("versioned id %q has invalid semantic version %q", id.Name, id.Version)
	}
	return nil
}

// String returns the canonical "name@version" form.
func (id VersionedID) String() string {
	return id.Name + "@" + id.Version
}

// IsValidVersion reports whether version is a valid semantic version
// ("1.0.0", "2.1.0-rc.1"). Leading "v" is not accepted; versions are
// written bare in descriptors and DSL documents.
func IsValidVersion(version string) bool {
	if version == "" || strings.HasPrefix(version, "v") {
		return false
	}
	v := "v" + version
	// Require the full major.minor.patch form; semver.IsValid alone would
	// accept truncated versions like "1" or "1.2".
	return semver.IsValid(v) && semver.Canonical(v) == v
}

// CompareVersions compares two bare semantic versions, returning -1, 0, or +1.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}
