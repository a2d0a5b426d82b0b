package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Hint names a textual timestamp layout. The same hint is used to parse a
// value and to write it back.
type Hint string

const (
	HintISOOffset       Hint = "iso8601-offset"        // 2006-01-02T15:04:05[.f]-07:00
	HintISOUTC          Hint = "iso8601-utc"           // 2006-01-02T15:04:05[.f]Z
	HintISONaive        Hint = "iso8601-naive"         // 2006-01-02T15:04:05[.f]
	HintISOMinuteOffset Hint = "iso8601-minute-offset" // 2006-01-02T15:04-07:00
	HintISOMinuteUTC    Hint = "iso8601-minute-utc"    // 2006-01-02T15:04Z
	HintISOMinuteNaive  Hint = "iso8601-minute-naive"  // 2006-01-02T15:04
	HintEXIFOffset      Hint = "exif-offset"           // 2006:01:02 15:04:05[.f]-07:00
	HintEXIFNaive       Hint = "exif-naive"            // 2006:01:02 15:04:05[.f]
	HintSQLNaive        Hint = "sql-naive"             // 2006-01-02 15:04:05[.f]
	HintSlashNaive      Hint = "slash-naive"           // 2006/01/02 15:04:05[.f]
)

type offsetStyle int

const (
	offsetNone offsetStyle = iota
	offsetNumeric
	offsetZulu
)

type precision int

const (
	precisionSecond precision = iota
	precisionMinute
)

type layout struct {
	hint      Hint
	dateSep   string
	timeSep   string
	offset    offsetStyle
	precision precision
	re        *regexp.Regexp
}

// layouts is the fixed order in which values without a usable hint are matched.
var layouts = []layout{
	newLayout(HintISOOffset, "-", "T", offsetNumeric, precisionSecond),
	newLayout(HintISOUTC, "-", "T", offsetZulu, precisionSecond),
	newLayout(HintISONaive, "-", "T", offsetNone, precisionSecond),
	newLayout(HintISOMinuteOffset, "-", "T", offsetNumeric, precisionMinute),
	newLayout(HintISOMinuteUTC, "-", "T", offsetZulu, precisionMinute),
	newLayout(HintISOMinuteNaive, "-", "T", offsetNone, precisionMinute),
	newLayout(HintEXIFOffset, ":", " ", offsetNumeric, precisionSecond),
	newLayout(HintEXIFNaive, ":", " ", offsetNone, precisionSecond),
	newLayout(HintSQLNaive, "-", " ", offsetNone, precisionSecond),
	newLayout(HintSlashNaive, "/", " ", offsetNone, precisionSecond),
}

// Hints returns every supported hint in matching order.
func Hints() []Hint {
	hints := make([]Hint, 0, len(layouts))
	for _, l := range layouts {
		hints = append(hints, l.hint)
	}
	return hints
}

// Supported reports whether h can be both parsed and formatted.
func Supported(h Hint) bool {
	_, ok := layoutFor(h)
	return ok
}

// HasOffset reports whether values in layout h carry an offset marker.
func (h Hint) HasOffset() bool {
	l, ok := layoutFor(h)
	return ok && l.offset != offsetNone
}

func layoutFor(h Hint) (layout, bool) {
	for _, l := range layouts {
		if l.hint == h {
			return l, true
		}
	}
	return layout{}, false
}

func newLayout(h Hint, dateSep, timeSep string, offset offsetStyle, prec precision) layout {
	ds := regexp.QuoteMeta(dateSep)
	expr := `^(\d{4})` + ds + `(\d{2})` + ds + `(\d{2})` + regexp.QuoteMeta(timeSep) + `(\d{2}):(\d{2})`
	if prec == precisionMinute {
		// Empty groups keep the submatch indexes of the seconds layouts.
		expr += `()()`
	} else {
		expr += `:(\d{2})(?:\.(\d+))?`
	}
	switch offset {
	case offsetNumeric:
		expr += `([+-])(\d{2}):(\d{2})$`
	case offsetZulu:
		expr += `Z$`
	default:
		expr += `$`
	}
	return layout{
		hint:      h,
		dateSep:   dateSep,
		timeSep:   timeSep,
		offset:    offset,
		precision: prec,
		re:        regexp.MustCompile(expr),
	}
}

// parse returns matched=false when value does not have this layout's shape.
// A shaped value with impossible components is matched with an error.
func (l layout) parse(value string) (ParsedTimestamp, bool, error) {
	m := l.re.FindStringSubmatch(value)
	if m == nil {
		return ParsedTimestamp{}, false, nil
	}

	p := ParsedTimestamp{
		Year:     atoi(m[1]),
		Month:    atoi(m[2]),
		Day:      atoi(m[3]),
		Hour:     atoi(m[4]),
		Minute:   atoi(m[5]),
		Second:   atoi(m[6]),
		Fraction: m[7],
		Hint:     l.hint,
	}

	switch l.offset {
	case offsetNumeric:
		hh, mm := atoi(m[9]), atoi(m[10])
		if mm > 59 {
			return ParsedTimestamp{}, true, fmt.Errorf("offset %s%s:%s: %w", m[8], m[9], m[10], ErrOutOfRangeTimestamp)
		}
		p.Offset = hh*60 + mm
		if m[8] == "-" {
			p.Offset = -p.Offset
		}
		p.HasOffset = true
	case offsetZulu:
		p.HasOffset = true
	}

	if err := validate(p); err != nil {
		return ParsedTimestamp{}, true, err
	}
	return p, true, nil
}

func (l layout) format(p ParsedTimestamp) (string, error) {
	if p.Year < 0 || p.Year > 9999 {
		return "", fmt.Errorf("year %d: %w", p.Year, ErrOutOfRangeTimestamp)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d%s%02d%s%02d%s%02d:%02d",
		p.Year, l.dateSep, p.Month, l.dateSep, p.Day, l.timeSep, p.Hour, p.Minute)
	if l.precision == precisionMinute {
		if p.Second != 0 || p.Fraction != "" {
			return "", fmt.Errorf("%s cannot carry seconds: %w", l.hint, ErrUnsupportedFormatHint)
		}
	} else {
		fmt.Fprintf(&sb, ":%02d", p.Second)
		if p.Fraction != "" {
			sb.WriteByte('.')
			sb.WriteString(p.Fraction)
		}
	}

	switch l.offset {
	case offsetNumeric:
		sb.WriteString(FormatOffset(p.Offset))
	case offsetZulu:
		if p.Offset != 0 {
			return "", fmt.Errorf("%s cannot carry offset %d: %w", l.hint, p.Offset, ErrUnsupportedFormatHint)
		}
		sb.WriteByte('Z')
	}
	return sb.String(), nil
}

// FormatOffset renders minutes east of UTC as ±HH:MM.
func FormatOffset(minutes int) string {
	sign := '+'
	if minutes < 0 {
		sign = '-'
		minutes = -minutes
	}
	return fmt.Sprintf("%c%02d:%02d", sign, minutes/60, minutes%60)
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
