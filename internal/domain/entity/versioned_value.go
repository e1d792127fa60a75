package entity

import (
	"fmt"
	"strconv"
	"time"
)

// Version is one observation of a versioned integer: the value it held
// from ValidAt onwards.
type Version struct {
	Value   int32
	ValidAt time.Time
}

// VersionedValue is the decoded form of the versioned_int extension type:
// an integer together with the history of values it has held. Versions are
// kept in chronological order; the last one is the current value.
type VersionedValue struct {
	versions []Version
}

// NewVersionedValue creates a VersionedValue from an ordered version list,
// with validation.
func NewVersionedValue(versions []Version) (*VersionedValue, error) {
	if len(versions) == 0 {
		return nil, fmt.Errorf("versioned value must have at least one version")
	}
	for i, v := range versions {
		if v.ValidAt.IsZero() {
			return nil, fmt.Errorf("version %d has zero timestamp", i)
		}
		if i > 0 && v.ValidAt.Before(versions[i-1].ValidAt) {
			return nil, fmt.Errorf("version %d predates version %d", i, i-1)
		}
	}
	vv := &VersionedValue{versions: make([]Version, len(versions))}
	copy(vv.versions, versions)
	return vv, nil
}

// ParseText parses the text representation of a versioned_int ("5") into
// a single-version value observed at the given instant. This mirrors the
// extension's input function, which stamps new values with the current
// transaction timestamp.
func ParseText(s string, at time.Time) (*VersionedValue, error) {
	value, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid text representation for versioned_int: %q", s)
	}
	return NewVersionedValue([]Version{{Value: int32(value), ValidAt: at}})
}

// Text returns the text representation of the current (latest) value.
// The extension's output function prints its first entry, but since its
// input function only ever produces single-entry values the two readings
// are indistinguishable there; for multi-version values the current value
// is the one a reader of the history expects.
func (v *VersionedValue) Text() string {
	return strconv.FormatInt(int64(v.Current().Value), 10)
}

// Current returns the latest version.
func (v *VersionedValue) Current() Version {
	return v.versions[len(v.versions)-1]
}

// Count returns the number of versions.
func (v *VersionedValue) Count() int {
	return len(v.versions)
}

// Versions returns a copy of the version history in chronological order.
func (v *VersionedValue) Versions() []Version {
	out := make([]Version, len(v.versions))
	copy(out, v.versions)
	return out
}

// ValueAt returns the value in effect at t: the latest version whose
// ValidAt is at or before t. The second return is false when t predates
// the first version.
func (v *VersionedValue) ValueAt(t time.Time) (int32, bool) {
	for i := len(v.versions) - 1; i >= 0; i-- {
		if !v.versions[i].ValidAt.After(t) {
			return v.versions[i].Value, true
		}
	}
	return 0, false
}

// Append records a new value observed at the given instant. The instant
// must not predate the current version.
func (v *VersionedValue) Append(value int32, at time.Time) error {
	if at.IsZero() {
		return fmt.Errorf("version timestamp must not be zero")
	}
	if at.Before(v.Current().ValidAt) {
		return fmt.Errorf("version at %v predates current version at %v", at, v.Current().ValidAt)
	}
	v.versions = append(v.versions, Version{Value: value, ValidAt: at})
	return nil
}
