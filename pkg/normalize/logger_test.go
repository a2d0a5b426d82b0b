package normalize_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quidome/tznormalize-go/pkg/normalize"
	"github.com/quidome/tznormalize-go/pkg/resolve"
)

func TestZapLogger_Field(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := normalize.NewZapLogger(zap.New(core))

	logger.Field("a.jpg", normalize.NormalizedField{
		ID: "DateTimeOriginal", OldValue: "2024:01:01 10:00:00+01:00", NewValue: "2024:01:01 09:00:00+00:00",
		Outcome: normalize.OutcomeNormalized, Provenance: resolve.ProvenanceExplicit,
	})
	logger.Field("a.jpg", normalize.NormalizedField{
		ID: "DateTime", OldValue: "bogus", Outcome: normalize.OutcomeSkippedMalformed, Err: errors.New("bad"),
	})

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "DateTimeOriginal", ctx["field"])
	assert.Equal(t, "normalized", ctx["outcome"])
	assert.Equal(t, "explicit-in-field", ctx["provenance"])
	assert.Equal(t, "2024:01:01 09:00:00+00:00", ctx["new_value"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "bad", entries[1].ContextMap()["error"])
}

func TestZapLogger_UnmarkedField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := normalize.NewZapLogger(zap.New(core))

	logger.Field("a.jpg", normalize.NormalizedField{
		ID: "DateTimeOriginal", OldValue: "2024:06:15 12:00:00", NewValue: "2024:06:15 10:00:00",
		Outcome: normalize.OutcomeNormalized, Provenance: resolve.ProvenanceOverride, Unmarked: true,
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "without a UTC marker")
	assert.Equal(t, "2024:06:15 10:00:00", entries[0].ContextMap()["new_value"])
}

func TestZapLogger_Report(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := normalize.NewZapLogger(zap.New(core))

	logger.Report(normalize.Report{File: "a.jpg", Fields: []normalize.NormalizedField{
		{ID: "t", Outcome: normalize.OutcomeDegraded},
		{ID: "u", Outcome: normalize.OutcomeNormalized},
	}})
	logger.Report(normalize.Report{File: "b.jpg"})
	logger.Report(normalize.Report{File: "c.jpg", Err: errors.New("gone")})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "file needs manual review", entries[0].Message)
	assert.EqualValues(t, 1, entries[0].ContextMap()["degraded-assumed-utc"])
	assert.Equal(t, "no timestamp fields found", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
