package timestamp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMalformedTimestamp is returned when a value matches none of the known layouts.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrOutOfRangeTimestamp is returned when a value has the right shape but
	// names a date, time or offset that does not exist.
	ErrOutOfRangeTimestamp = errors.New("timestamp out of range")

	// ErrUnsupportedFormatHint is returned when asked to format into a hint
	// that has no layout.
	ErrUnsupportedFormatHint = errors.New("unsupported format hint")
)

// RawField is a timestamp-bearing metadata field as read from a metadata store.
type RawField struct {
	// ID is the field key as the store knows it, e.g. "DateTimeOriginal".
	ID string

	// Value is the raw textual value.
	Value string

	// Hint is the layout the store expects the value to follow.
	// It may be empty when the store has no expectation.
	Hint Hint
}

// ParsedTimestamp is the structured form of a timestamp value.
//
// Date and time components are always range-valid. An offset is only present
// when the text literally contained one.
type ParsedTimestamp struct {
	Year   int
	Month  int
	Day    int
	Hour   int
	Minute int
	Second int

	// Fraction holds the sub-second digits exactly as written, without the dot.
	Fraction string

	// Offset is minutes east of UTC. Only meaningful when HasOffset is true.
	Offset    int
	HasOffset bool

	// Hint is the layout the value was parsed with.
	Hint Hint
}

// Wall returns the wall-clock value of p in loc, ignoring any offset p carries.
func (p ParsedTimestamp) Wall(loc *time.Location) time.Time {
	return time.Date(p.Year, time.Month(p.Month), p.Day, p.Hour, p.Minute, p.Second, p.nanos(), loc)
}

func (p ParsedTimestamp) nanos() int {
	if p.Fraction == "" {
		return 0
	}
	digits := p.Fraction
	if len(digits) > 9 {
		digits = digits[:9]
	}
	digits += strings.Repeat("0", 9-len(digits))
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// Parse parses the value of f.
//
// When f declares a known hint, that layout is tried first. Otherwise, or if it
// does not match, every layout is tried in a fixed order and the first match
// wins. Parse never interprets time zones; it reports exactly what the text says.
func Parse(f RawField) (ParsedTimestamp, error) {
	value := strings.TrimSpace(f.Value)

	if l, ok := layoutFor(f.Hint); ok {
		if p, matched, err := l.parse(value); matched {
			if err != nil {
				return ParsedTimestamp{}, fmt.Errorf("%s %q: %w", f.ID, f.Value, err)
			}
			return p, nil
		}
	}

	for _, l := range layouts {
		p, matched, err := l.parse(value)
		if !matched {
			continue
		}
		if err != nil {
			return ParsedTimestamp{}, fmt.Errorf("%s %q: %w", f.ID, f.Value, err)
		}
		return p, nil
	}

	return ParsedTimestamp{}, fmt.Errorf("%s %q: %w", f.ID, f.Value, ErrMalformedTimestamp)
}

// Format serializes p using the layout named by h.
//
// Offset layouts write p's offset; naive layouts drop it.
func Format(h Hint, p ParsedTimestamp) (string, error) {
	l, ok := layoutFor(h)
	if !ok {
		return "", fmt.Errorf("%q: %w", h, ErrUnsupportedFormatHint)
	}
	return l.format(p)
}

func validate(p ParsedTimestamp) error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("month %d: %w", p.Month, ErrOutOfRangeTimestamp)
	}
	if p.Day < 1 || p.Day > daysIn(p.Year, p.Month) {
		return fmt.Errorf("day %d of %04d-%02d: %w", p.Day, p.Year, p.Month, ErrOutOfRangeTimestamp)
	}
	if p.Hour > 23 || p.Minute > 59 || p.Second > 59 {
		return fmt.Errorf("time %02d:%02d:%02d: %w", p.Hour, p.Minute, p.Second, ErrOutOfRangeTimestamp)
	}
	if p.HasOffset {
		abs := p.Offset
		if abs < 0 {
			abs = -abs
		}
		if abs/60 > 14 {
			return fmt.Errorf("offset %d minutes: %w", p.Offset, ErrOutOfRangeTimestamp)
		}
	}
	return nil
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
