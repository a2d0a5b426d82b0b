package normalize

import (
	"github.com/quidome/tznormalize-go/pkg/resolve"
)

// Outcome describes what happened to a single field.
type Outcome string

const (
	OutcomeNormalized         Outcome = "normalized"
	OutcomeAlreadyUTC         Outcome = "already-utc"
	OutcomeSkippedMalformed   Outcome = "skipped-malformed"
	OutcomeSkippedUnsupported Outcome = "skipped-unsupported-format"
	OutcomeDegraded           Outcome = "degraded-assumed-utc"
)

// Skipped reports whether the field was left untouched because of an error.
func (o Outcome) Skipped() bool {
	return o == OutcomeSkippedMalformed || o == OutcomeSkippedUnsupported
}

// NormalizedField is the result for one timestamp field.
type NormalizedField struct {
	ID         string             `json:"id"`
	OldValue   string             `json:"old_value"`
	NewValue   string             `json:"new_value,omitempty"`
	Outcome    Outcome            `json:"outcome"`
	Provenance resolve.Provenance `json:"provenance,omitempty"`

	// Written is true when the new value was handed to the store and
	// persisted.
	Written bool `json:"written"`

	// Unmarked is set when the new value was written in a layout without an
	// offset, such as a naive EXIF tag. The file no longer shows the value is
	// UTC, and running again with a zone shifts it a second time.
	Unmarked bool `json:"unmarked,omitempty"`

	// Err explains a skipped field. When a commit fails every field that was
	// about to be written is skipped and carries the commit error.
	Err error `json:"-"`
}

// Changed reports whether the new value differs from the old one.
func (f NormalizedField) Changed() bool {
	return f.NewValue != "" && f.NewValue != f.OldValue
}

// Report is the ordered list of field results for one file.
type Report struct {
	File   string            `json:"file"`
	DryRun bool              `json:"dry_run"`
	Fields []NormalizedField `json:"fields"`

	// Err is set when the file could not be processed at all.
	Err error `json:"-"`
}

// Counts tallies the fields by outcome.
func (r Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for _, f := range r.Fields {
		counts[f.Outcome]++
	}
	return counts
}

// HasSkips reports whether any field was skipped.
func (r Report) HasSkips() bool {
	for _, f := range r.Fields {
		if f.Outcome.Skipped() {
			return true
		}
	}
	return false
}

// NeedsReview reports whether any field was converted on the assumed-utc fallback.
func (r Report) NeedsReview() bool {
	for _, f := range r.Fields {
		if f.Outcome == OutcomeDegraded {
			return true
		}
	}
	return false
}

// Clean reports whether the file was processed with no skips, degradations or errors.
func (r Report) Clean() bool {
	return r.Err == nil && !r.HasSkips() && !r.NeedsReview()
}
