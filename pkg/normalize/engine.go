// Package normalize rewrites the timestamp fields of a file's metadata to UTC.
//
// For every field the engine parses the value, resolves the offset it was
// recorded in, converts it to UTC and writes it back. All fields are read and
// converted before the first write, and a failing field never stops the others.
package normalize

import (
	"errors"
	"fmt"

	"github.com/quidome/tznormalize-go/pkg/convert"
	"github.com/quidome/tznormalize-go/pkg/resolve"
	"github.com/quidome/tznormalize-go/pkg/timestamp"
)

var (
	// ErrStoreUnavailable is returned when a file's metadata cannot be read.
	ErrStoreUnavailable = errors.New("metadata store unavailable")

	// ErrCommit is returned when buffered writes could not be persisted.
	ErrCommit = errors.New("commit metadata changes")
)

// Store gives access to the timestamp fields of one file.
type Store interface {
	// ListTimestampFields returns the fields in a stable order.
	ListTimestampFields() ([]timestamp.RawField, error)

	// WriteField replaces the value of the field with the given ID.
	WriteField(id, value string) error
}

// Committer is implemented by stores that buffer writes until Commit.
type Committer interface {
	Commit() error
}

// Logger receives normalization events.
type Logger interface {
	// Field is called for each field the engine decides to report.
	Field(file string, f NormalizedField)

	// Report is called once per file with the final report.
	Report(r Report)
}

// Options configures an Engine.
type Options struct {
	// DryRun computes the full report but never writes.
	DryRun bool

	// Verbose reports every field. Otherwise only normalized and
	// degraded fields are passed to Logger.Field.
	Verbose bool
}

// Engine normalizes the timestamp fields of single files. It holds no
// per-file state and is safe for concurrent use.
type Engine struct {
	opts   Options
	logger Logger
}

// NewEngine returns an engine that reports to logger.
func NewEngine(logger Logger, opts Options) *Engine {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Engine{opts: opts, logger: logger}
}

// NormalizeFile normalizes every timestamp field of store. The returned
// report is complete even when some fields fail. A non-nil error means the
// file as a whole could not be read or committed; it is also set on Report.Err.
func (e *Engine) NormalizeFile(file string, store Store, ctx resolve.Context) (Report, error) {
	report := Report{File: file, DryRun: e.opts.DryRun}

	raw, err := store.ListTimestampFields()
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", file, errors.Join(ErrStoreUnavailable, err))
		e.logger.Report(report)
		return report, report.Err
	}

	// Everything is read and converted before anything is written.
	report.Fields = make([]NormalizedField, 0, len(raw))
	for _, f := range raw {
		report.Fields = append(report.Fields, e.normalizeField(f, ctx))
	}

	if !e.opts.DryRun {
		report.Err = e.write(file, store, report.Fields)
	}

	for _, f := range report.Fields {
		if e.opts.Verbose || f.Outcome == OutcomeNormalized || f.Outcome == OutcomeDegraded {
			e.logger.Field(file, f)
		}
	}
	e.logger.Report(report)

	return report, report.Err
}

func (e *Engine) normalizeField(f timestamp.RawField, ctx resolve.Context) NormalizedField {
	out := NormalizedField{ID: f.ID, OldValue: f.Value}

	parsed, err := timestamp.Parse(f)
	if err != nil {
		out.Outcome = OutcomeSkippedMalformed
		out.Err = err
		return out
	}

	offset := resolve.Resolve(parsed, ctx)
	out.Provenance = offset.Provenance

	// A declared hint wins so the value is written back in the shape the
	// store expects, even when the text itself drifted from it.
	hint := f.Hint
	if hint == "" {
		hint = parsed.Hint
	}
	value, err := convert.Convert(parsed, offset, hint)
	if err != nil {
		out.Outcome = OutcomeSkippedUnsupported
		out.Err = err
		return out
	}
	out.NewValue = value
	out.Unmarked = out.Changed() && !convert.Canonical(hint).HasOffset()

	switch {
	case offset.Degraded():
		out.Outcome = OutcomeDegraded
	case offset.Minutes == 0:
		out.Outcome = OutcomeAlreadyUTC
	default:
		out.Outcome = OutcomeNormalized
	}
	return out
}

func (e *Engine) write(file string, store Store, fields []NormalizedField) error {
	wrote := false
	for i := range fields {
		f := &fields[i]
		if f.Outcome.Skipped() || !f.Changed() {
			continue
		}
		if err := store.WriteField(f.ID, f.NewValue); err != nil {
			f.Outcome = OutcomeSkippedUnsupported
			f.Err = fmt.Errorf("write %s: %w", f.ID, err)
			continue
		}
		f.Written = true
		wrote = true
	}

	if !wrote {
		return nil
	}
	c, ok := store.(Committer)
	if !ok {
		return nil
	}
	if err := c.Commit(); err != nil {
		err = fmt.Errorf("%s: %w", file, errors.Join(ErrCommit, err))
		// Nothing reached the file, so no field keeps its converted outcome.
		for i := range fields {
			f := &fields[i]
			if !f.Written {
				continue
			}
			f.Written = false
			f.Outcome = OutcomeSkippedUnsupported
			f.Err = err
		}
		return err
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Field(string, NormalizedField) {}
func (nopLogger) Report(Report)                 {}
