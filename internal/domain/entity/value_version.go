package entity

import (
	"fmt"
	"time"
)

// ValueVersion is one persisted observation in a value timeline: series
// identity plus a (value, valid-at) pair. It is the unit the history
// loader writes.
type ValueVersion struct {
	SeriesID  int64
	SeriesKey string
	Value     int32
	ValidAt   time.Time
}

// NewValueVersion creates a new ValueVersion entity with validation.
func NewValueVersion(seriesID int64, seriesKey string, value int32, validAt time.Time) (*ValueVersion, error) {
	v := &ValueVersion{
		SeriesID:  seriesID,
		SeriesKey: seriesKey,
		Value:     value,
		ValidAt:   validAt,
	}
	if err := v.validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// validate checks that all fields have valid values.
func (v *ValueVersion) validate() error {
	if v.SeriesID <= 0 {
		return fmt.Errorf("seriesID must be positive, got %d", v.SeriesID)
	}
	if v.SeriesKey == "" {
		return fmt.Errorf("seriesKey must not be empty")
	}
	if v.ValidAt.IsZero() {
		return fmt.Errorf("validAt must not be zero")
	}
	return nil
}
