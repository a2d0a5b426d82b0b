// Package resolve decides which UTC offset a parsed timestamp was recorded in.
//
// The decision follows a fixed precedence:
//  1. an offset written in the field itself
//  2. the user-supplied override
//  3. an offset derived from the file's GPS position
//  4. assume the value already is UTC
//
// An offset stated by the field is never replaced, since that would re-date
// the timestamp instead of normalizing its representation.
package resolve

import (
	"math"
	"time"

	"github.com/quidome/tznormalize-go/pkg/timestamp"
)

// Provenance records which rule produced a ResolvedOffset.
type Provenance string

const (
	ProvenanceExplicit   Provenance = "explicit-in-field"
	ProvenanceOverride   Provenance = "user-override"
	ProvenanceGPS        Provenance = "gps-derived"
	ProvenanceAssumedUTC Provenance = "assumed-utc"
)

// ResolvedOffset is the offset a timestamp is interpreted in.
type ResolvedOffset struct {
	// Minutes east of UTC.
	Minutes    int
	Provenance Provenance
}

// Degraded reports whether the offset is a best-effort guess.
func (r ResolvedOffset) Degraded() bool {
	return r.Provenance == ProvenanceAssumedUTC
}

// Context carries the per-file inputs for resolution.
// Nil zones are treated as not supplied.
type Context struct {
	UserOverride *Zone
	GPSDerived   *Zone
}

// Resolve returns the offset p should be interpreted in.
func Resolve(p timestamp.ParsedTimestamp, ctx Context) ResolvedOffset {
	switch {
	case p.HasOffset:
		return ResolvedOffset{Minutes: p.Offset, Provenance: ProvenanceExplicit}
	case ctx.UserOverride != nil:
		return ResolvedOffset{Minutes: ctx.UserOverride.OffsetAt(p), Provenance: ProvenanceOverride}
	case ctx.GPSDerived != nil:
		return ResolvedOffset{Minutes: ctx.GPSDerived.OffsetAt(p), Provenance: ProvenanceGPS}
	default:
		return ResolvedOffset{Minutes: 0, Provenance: ProvenanceAssumedUTC}
	}
}

// Zone is either a fixed offset or a named location whose offset depends on
// the date (daylight saving time).
type Zone struct {
	name     string
	minutes  int
	location *time.Location
}

// FixedZone returns a zone with a constant offset in minutes east of UTC.
func FixedZone(minutes int) *Zone {
	return &Zone{name: timestamp.FormatOffset(minutes), minutes: minutes}
}

// LocationZone returns a zone that follows loc's rules.
func LocationZone(loc *time.Location) *Zone {
	return &Zone{name: loc.String(), location: loc}
}

// String returns the zone's offset or location name.
func (z *Zone) String() string {
	return z.name
}

// OffsetAt returns the zone's offset in minutes for p's wall clock.
//
// For a location the wall clock is interpreted the way time.Date does, so
// times inside a DST gap or overlap take the offset Go picks for them.
// Local mean time offsets with leftover seconds round to the nearest minute.
func (z *Zone) OffsetAt(p timestamp.ParsedTimestamp) int {
	if z.location == nil {
		return z.minutes
	}
	_, seconds := p.Wall(z.location).Zone()
	return int(math.Round(float64(seconds) / 60))
}
