// Package world provides the read-only world-state snapshot consumed by
// sensor predicates and leaf effectors.
//
// A snapshot is supplied on demand by an external collaborator (the game
// interface); this package only reads named fields from it. Field access is
// presence-aware: a field holding 0, "", or false is a legitimate reading and
// must never be confused with a missing field. Light level 0 is darkness,
// not "no data".
package world

import (
	"fmt"
	"time"

	"github.com/Jeffail/gabs/v2"
)

// Snapshot is an immutable view of world state at a single point in time.
// Fields are addressed with dotted paths ("inventory.torch.count").
type Snapshot struct {
	container  *gabs.Container
	capturedAt time.Time
}

// NewSnapshot wraps an already-decoded state map. The map must not be
// mutated after the snapshot is created.
func NewSnapshot(data map[string]any) *Snapshot {
	return &Snapshot{
		container:  gabs.Wrap(data),
		capturedAt: time.Now(),
	}
}

// ParseSnapshot decodes a JSON-encoded world state into a Snapshot.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	container, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse world snapshot: %w", err)
	}
	return &Snapshot{container: container, capturedAt: time.Now()}, nil
}

// CapturedAt returns when the snapshot was taken.
func (s *Snapshot) CapturedAt() time.Time {
	return s.capturedAt
}

// Lookup resolves a dotted path against the snapshot.
//
// The second return value reports presence: Lookup("lightLevel") on a
// snapshot holding lightLevel: 0 returns (0, true), while a snapshot without
// the field returns (nil, false). An explicit null field returns (nil, true).
func (s *Snapshot) Lookup(path string) (any, bool) {
	if s == nil || s.container == nil {
		return nil, false
	}
	if !s.container.ExistsP(path) {
		return nil, false
	}
	return s.container.Path(path).Data(), true
}

// Number resolves a dotted path to a float64. The bool reports whether the
// field is present and numeric; a present-but-zero value returns (0, true).
func (s *Snapshot) Number(path string) (float64, bool) {
	value, found := s.Lookup(path)
	if !found {
		return 0, false
	}
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// Bool resolves a dotted path to a bool. A present false returns (false, true).
func (s *Snapshot) Bool(path string) (bool, bool) {
	value, found := s.Lookup(path)
	if !found {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// String resolves a dotted path to a string. A present empty string returns
// ("", true).
func (s *Snapshot) String(path string) (string, bool) {
	value, found := s.Lookup(path)
	if !found {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// Data returns the underlying state for expression environments. Callers
// must treat the returned value as read-only.
func (s *Snapshot) Data() any {
	if s == nil || s.container == nil {
		return map[string]any{}
	}
	return s.container.Data()
}
