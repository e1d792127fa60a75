// Package pgtime converts PostgreSQL timestamptz values between their
// internal representation (microseconds since 2000-01-01 00:00:00 UTC)
// and time.Time.
//
// Conversions go through time.Unix seconds rather than time.Duration so
// the full int64 microsecond range survives without nanosecond overflow,
// and results always carry the UTC location.
package pgtime

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrOutOfRange reports a microsecond offset whose timestamp falls outside
// PostgreSQL's valid timestamptz range, including the infinity sentinels.
var ErrOutOfRange = errors.New("timestamp out of range")

// EpochUnixSeconds is the PostgreSQL epoch (2000-01-01T00:00:00Z)
// expressed as Unix seconds.
const EpochUnixSeconds int64 = 946684800

const microsPerSecond int64 = 1_000_000

// Bounds of the valid timestamptz range, in microseconds since the
// PostgreSQL epoch. These mirror MIN_TIMESTAMP and END_TIMESTAMP from
// PostgreSQL's datatype/timestamp.h: [4714-11-24 BC, 294277-01-01 AD).
const (
	MinMicros int64 = -211813488000000000
	EndMicros int64 = 9223371331200000000
)

// Infinity sentinels, as stored by PostgreSQL for 'infinity'::timestamptz
// and '-infinity'::timestamptz.
const (
	NoEnd   int64 = math.MaxInt64
	NoBegin int64 = math.MinInt64
)

// Epoch returns the PostgreSQL epoch instant in UTC.
func Epoch() time.Time {
	return time.Unix(EpochUnixSeconds, 0).UTC()
}

// IsFinite reports whether micros is an ordinary timestamp rather than
// one of the infinity sentinels.
func IsFinite(micros int64) bool {
	return micros != NoBegin && micros != NoEnd
}

// ToTime converts a count of microseconds since the PostgreSQL epoch into
// the corresponding UTC time.Time. The offset may be negative. Microsecond
// precision is carried exactly in the nanosecond field.
func ToTime(micros int64) (time.Time, error) {
	if !IsFinite(micros) {
		return time.Time{}, fmt.Errorf("%w: infinity sentinel %d", ErrOutOfRange, micros)
	}
	if micros < MinMicros || micros >= EndMicros {
		return time.Time{}, fmt.Errorf("%w: %d microseconds from epoch", ErrOutOfRange, micros)
	}

	sec := micros / microsPerSecond
	rem := micros % microsPerSecond
	if rem < 0 {
		sec--
		rem += microsPerSecond
	}
	return time.Unix(EpochUnixSeconds+sec, rem*1000).UTC(), nil
}

// FromTime converts a time.Time into microseconds since the PostgreSQL
// epoch, truncating sub-microsecond precision.
func FromTime(t time.Time) int64 {
	sec := t.Unix() - EpochUnixSeconds
	return sec*microsPerSecond + int64(t.Nanosecond())/1000
}
