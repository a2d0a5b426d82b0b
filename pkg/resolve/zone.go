package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidZone is returned by ParseZone for values that are neither an
// offset nor a known location.
var ErrInvalidZone = errors.New("invalid time zone")

var reOffset = regexp.MustCompile(`^([+-])(\d{2}):?(\d{2})?$`)

// ParseZone parses a user-supplied zone: "Z", "UTC", "+05:30", "-0800", "+02"
// or an IANA location name such as "Europe/Amsterdam".
func ParseZone(s string) (*Zone, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty value: %w", ErrInvalidZone)
	}
	if strings.EqualFold(s, "z") || strings.EqualFold(s, "utc") {
		return FixedZone(0), nil
	}

	if m := reOffset.FindStringSubmatch(s); m != nil {
		hh, _ := strconv.Atoi(m[2])
		mm := 0
		if m[3] != "" {
			mm, _ = strconv.Atoi(m[3])
		}
		if hh > 14 || mm > 59 {
			return nil, fmt.Errorf("offset %q: %w", s, ErrInvalidZone)
		}
		minutes := hh*60 + mm
		if m[1] == "-" {
			minutes = -minutes
		}
		return FixedZone(minutes), nil
	}

	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", s, errors.Join(ErrInvalidZone, err))
	}
	return LocationZone(loc), nil
}
