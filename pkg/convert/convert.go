package convert

import (
	"fmt"
	"time"

	"github.com/quidome/tznormalize-go/pkg/resolve"
	"github.com/quidome/tznormalize-go/pkg/timestamp"
)

// ToUTC shifts p from the resolved offset into UTC. The fraction is carried
// over as written; offsets are whole minutes so it never changes.
func ToUTC(p timestamp.ParsedTimestamp, r resolve.ResolvedOffset) timestamp.ParsedTimestamp {
	utc := p.Wall(time.FixedZone("", r.Minutes*60)).UTC()
	return timestamp.ParsedTimestamp{
		Year:      utc.Year(),
		Month:     int(utc.Month()),
		Day:       utc.Day(),
		Hour:      utc.Hour(),
		Minute:    utc.Minute(),
		Second:    utc.Second(),
		Fraction:  p.Fraction,
		Offset:    0,
		HasOffset: true,
		Hint:      p.Hint,
	}
}

// Convert shifts p into UTC and serializes it using hint, or p's own hint when
// hint is empty.
//
// The result carries the canonical UTC marker of its layout family, see
// Canonical.
func Convert(p timestamp.ParsedTimestamp, r resolve.ResolvedOffset, hint timestamp.Hint) (string, error) {
	if hint == "" {
		hint = p.Hint
	}
	if !timestamp.Supported(hint) {
		return "", fmt.Errorf("serialize %q: %w", hint, timestamp.ErrUnsupportedFormatHint)
	}

	target := Canonical(hint)
	utc := ToUTC(p, r)
	utc.Hint = target

	out, err := timestamp.Format(target, utc)
	if err != nil {
		return "", fmt.Errorf("serialize %q: %w", target, err)
	}
	return out, nil
}

// Canonical returns the layout a value written in h is rewritten in.
//
// ISO 8601 family layouts, including the naive SQL and slash forms, become
// the zulu form of the same precision, so a rewritten value is marked as UTC
// and a later run leaves it alone. EXIF keeps its shape: "+00:00" where the
// field had an offset, and no marker where it had none, since the tag's
// storage has no room to add one.
func Canonical(h timestamp.Hint) timestamp.Hint {
	switch h {
	case timestamp.HintISOOffset, timestamp.HintISONaive, timestamp.HintSQLNaive, timestamp.HintSlashNaive:
		return timestamp.HintISOUTC
	case timestamp.HintISOMinuteOffset, timestamp.HintISOMinuteNaive:
		return timestamp.HintISOMinuteUTC
	default:
		return h
	}
}
