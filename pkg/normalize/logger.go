package normalize

import (
	"go.uber.org/zap"
)

// ZapLogger writes normalization events to a zap logger.
type ZapLogger struct {
	log *zap.Logger
}

// NewZapLogger returns a Logger backed by log.
func NewZapLogger(log *zap.Logger) *ZapLogger {
	return &ZapLogger{log: log}
}

func (z *ZapLogger) Field(file string, f NormalizedField) {
	fields := []zap.Field{
		zap.String("file", file),
		zap.String("field", f.ID),
		zap.String("outcome", string(f.Outcome)),
		zap.String("old_value", f.OldValue),
	}
	if f.Provenance != "" {
		fields = append(fields, zap.String("provenance", string(f.Provenance)))
	}
	if f.NewValue != "" {
		fields = append(fields, zap.String("new_value", f.NewValue))
	}

	switch {
	case f.Err != nil:
		z.log.Warn("skipped timestamp field", append(fields, zap.Error(f.Err))...)
	case f.Outcome == OutcomeDegraded:
		z.log.Warn("no offset known, assumed UTC", fields...)
	case f.Unmarked:
		z.log.Warn("rewritten without a UTC marker, running again with a zone shifts it again", fields...)
	case f.Outcome == OutcomeNormalized:
		z.log.Info("normalized timestamp field", fields...)
	default:
		z.log.Debug("timestamp field unchanged", fields...)
	}
}

func (z *ZapLogger) Report(r Report) {
	log := z.log.With(zap.String("file", r.File), zap.Bool("dry_run", r.DryRun))

	if r.Err != nil {
		log.Error("processing file", zap.Error(r.Err))
		return
	}
	if len(r.Fields) == 0 {
		log.Info("no timestamp fields found")
		return
	}

	counts := r.Counts()
	fields := []zap.Field{
		zap.Int("fields", len(r.Fields)),
		zap.Int(string(OutcomeNormalized), counts[OutcomeNormalized]),
		zap.Int(string(OutcomeAlreadyUTC), counts[OutcomeAlreadyUTC]),
		zap.Int(string(OutcomeDegraded), counts[OutcomeDegraded]),
		zap.Int(string(OutcomeSkippedMalformed), counts[OutcomeSkippedMalformed]),
		zap.Int(string(OutcomeSkippedUnsupported), counts[OutcomeSkippedUnsupported]),
	}

	switch {
	case r.NeedsReview():
		log.Warn("file needs manual review", fields...)
	case r.HasSkips():
		log.Warn("file partially normalized", fields...)
	default:
		log.Info("file normalized", fields...)
	}
}
