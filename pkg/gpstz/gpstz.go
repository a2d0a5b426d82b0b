// Package gpstz maps GPS coordinates to the time zone in effect there.
package gpstz

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ringsaturn/tzf"

	"github.com/quidome/tznormalize-go/pkg/resolve"
)

// ErrNoZone is returned for positions outside every known time zone, such as
// open sea, and for invalid coordinates.
var ErrNoZone = errors.New("no time zone at position")

// NameFunc returns the IANA zone name at a longitude and latitude, or "".
type NameFunc func(lng, lat float64) string

// Finder looks up zones with tzf. The zone data is loaded on first use.
type Finder struct {
	once   sync.Once
	lookup NameFunc
	err    error
}

// New returns a Finder backed by tzf's default data set.
func New() *Finder {
	return &Finder{}
}

// NewWithLookup returns a Finder using lookup instead of tzf.
func NewWithLookup(lookup NameFunc) *Finder {
	f := &Finder{lookup: lookup}
	f.once.Do(func() {})
	return f
}

func (f *Finder) init() {
	f.once.Do(func() {
		finder, err := tzf.NewDefaultFinder()
		if err != nil {
			f.err = fmt.Errorf("loading time zone data: %w", err)
			return
		}
		f.lookup = finder.GetTimezoneName
	})
}

// ZoneAt returns the zone at lat, lon. The zone is a location, so its
// offset follows daylight saving time at the timestamp it is applied to.
func (f *Finder) ZoneAt(lat, lon float64) (*resolve.Zone, error) {
	if !validPosition(lat, lon) {
		return nil, fmt.Errorf("%.6f,%.6f: %w", lat, lon, ErrNoZone)
	}

	f.init()
	if f.err != nil {
		return nil, f.err
	}

	name := f.lookup(lon, lat)
	if name == "" {
		return nil, fmt.Errorf("%.6f,%.6f: %w", lat, lon, ErrNoZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	return resolve.LocationZone(loc), nil
}

func validPosition(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	// 0,0 is what cameras write when they have no fix.
	return lat != 0 || lon != 0
}
