package normalize_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quidome/tznormalize-go/pkg/normalize"
	"github.com/quidome/tznormalize-go/pkg/resolve"
	"github.com/quidome/tznormalize-go/pkg/timestamp"
)

type fakeStore struct {
	fields    []timestamp.RawField
	listErr   error
	writeErr  map[string]error
	commitErr error

	// events records the order of calls, e.g. "list", "write:DateTime", "commit".
	events    []string
	written   map[string]string
	committed bool
}

func newFakeStore(fields ...timestamp.RawField) *fakeStore {
	return &fakeStore{fields: fields, written: make(map[string]string)}
}

func (s *fakeStore) ListTimestampFields() ([]timestamp.RawField, error) {
	s.events = append(s.events, "list")
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.fields, nil
}

func (s *fakeStore) WriteField(id, value string) error {
	s.events = append(s.events, "write:"+id)
	if err := s.writeErr[id]; err != nil {
		return err
	}
	s.written[id] = value
	return nil
}

func (s *fakeStore) Commit() error {
	s.events = append(s.events, "commit")
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = true
	return nil
}

type recordingLogger struct {
	mu      sync.Mutex
	fields  []normalize.NormalizedField
	reports []normalize.Report
}

func (l *recordingLogger) Field(_ string, f normalize.NormalizedField) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = append(l.fields, f)
}

func (l *recordingLogger) Report(r normalize.Report) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reports = append(l.reports, r)
}

func field(id, value string) timestamp.RawField {
	return timestamp.RawField{ID: id, Value: value}
}

func TestNormalizeFile_Outcomes(t *testing.T) {
	store := newFakeStore(
		field("capture-time", "2024-03-01T00:30:00+05:30"),
		field("modify-time", "2024-02-29T19:00:00Z"),
		field("digitized-time", "2024-02-29T19:00:00+00:00"),
		field("broken", "not a date"),
		timestamp.RawField{ID: "odd-hint", Value: "2024-01-01T00:00:00+01:00", Hint: "unix-seconds"},
		field("naive", "2024-06-15T12:00:00"),
	)
	logger := &recordingLogger{}
	engine := normalize.NewEngine(logger, normalize.Options{})

	report, err := engine.NormalizeFile("a.jpg", store, resolve.Context{})
	require.NoError(t, err)
	require.Len(t, report.Fields, 6)

	want := []struct {
		outcome    normalize.Outcome
		newValue   string
		provenance resolve.Provenance
		written    bool
	}{
		{normalize.OutcomeNormalized, "2024-02-29T19:00:00Z", resolve.ProvenanceExplicit, true},
		{normalize.OutcomeAlreadyUTC, "2024-02-29T19:00:00Z", resolve.ProvenanceExplicit, false},
		{normalize.OutcomeAlreadyUTC, "2024-02-29T19:00:00Z", resolve.ProvenanceExplicit, true},
		{normalize.OutcomeSkippedMalformed, "", "", false},
		{normalize.OutcomeSkippedUnsupported, "", resolve.ProvenanceExplicit, false},
		{normalize.OutcomeDegraded, "2024-06-15T12:00:00Z", resolve.ProvenanceAssumedUTC, true},
	}
	for i, w := range want {
		got := report.Fields[i]
		assert.Equal(t, w.outcome, got.Outcome, got.ID)
		assert.Equal(t, w.newValue, got.NewValue, got.ID)
		assert.Equal(t, w.provenance, got.Provenance, got.ID)
		assert.Equal(t, w.written, got.Written, got.ID)
	}

	assert.ErrorIs(t, report.Fields[3].Err, timestamp.ErrMalformedTimestamp)
	assert.ErrorIs(t, report.Fields[4].Err, timestamp.ErrUnsupportedFormatHint)
	assert.True(t, report.HasSkips())
	assert.True(t, report.NeedsReview())
	assert.False(t, report.Clean())

	assert.Equal(t, map[string]string{
		"capture-time":   "2024-02-29T19:00:00Z",
		"digitized-time": "2024-02-29T19:00:00Z",
		"naive":          "2024-06-15T12:00:00Z",
	}, store.written)
	assert.True(t, store.committed)

	// Non-verbose: only normalized and degraded fields are logged.
	require.Len(t, logger.fields, 2)
	assert.Equal(t, "capture-time", logger.fields[0].ID)
	assert.Equal(t, "naive", logger.fields[1].ID)
	require.Len(t, logger.reports, 1)
}

func TestNormalizeFile_ReadsEverythingBeforeWriting(t *testing.T) {
	store := newFakeStore(
		field("a", "2024-01-01T10:00:00+01:00"),
		field("b", "2024-01-01T10:00:00+02:00"),
	)
	engine := normalize.NewEngine(nil, normalize.Options{})

	_, err := engine.NormalizeFile("f", store, resolve.Context{})
	require.NoError(t, err)
	assert.Equal(t, []string{"list", "write:a", "write:b", "commit"}, store.events)
}

func TestNormalizeFile_ExplicitOffsetBeatsOverride(t *testing.T) {
	store := newFakeStore(field("capture-time", "2024-03-01T00:30:00+05:30"))
	engine := normalize.NewEngine(nil, normalize.Options{})

	report, err := engine.NormalizeFile("f", store, resolve.Context{UserOverride: resolve.FixedZone(120)})
	require.NoError(t, err)

	f := report.Fields[0]
	assert.Equal(t, resolve.ProvenanceExplicit, f.Provenance)
	assert.Equal(t, "2024-02-29T19:00:00Z", f.NewValue)
}

func TestNormalizeFile_OverrideAndGPS(t *testing.T) {
	engine := normalize.NewEngine(nil, normalize.Options{})

	report, err := engine.NormalizeFile("f", newFakeStore(field("t", "2024:06:15 12:00:00")),
		resolve.Context{UserOverride: resolve.FixedZone(120), GPSDerived: resolve.FixedZone(-300)})
	require.NoError(t, err)
	assert.Equal(t, resolve.ProvenanceOverride, report.Fields[0].Provenance)
	assert.Equal(t, "2024:06:15 10:00:00", report.Fields[0].NewValue)

	report, err = engine.NormalizeFile("f", newFakeStore(field("t", "2024:06:15 12:00:00")),
		resolve.Context{GPSDerived: resolve.FixedZone(-300)})
	require.NoError(t, err)
	assert.Equal(t, resolve.ProvenanceGPS, report.Fields[0].Provenance)
	assert.Equal(t, "2024:06:15 17:00:00", report.Fields[0].NewValue)
	assert.Equal(t, normalize.OutcomeNormalized, report.Fields[0].Outcome)
}

func TestNormalizeFile_Idempotent(t *testing.T) {
	engine := normalize.NewEngine(nil, normalize.Options{})

	first := newFakeStore(field("t", "2023-12-31T20:15:00.250-05:00"))
	_, err := engine.NormalizeFile("f", first, resolve.Context{})
	require.NoError(t, err)
	out := first.written["t"]
	require.Equal(t, "2024-01-01T01:15:00.250Z", out)

	second := newFakeStore(field("t", out))
	report, err := engine.NormalizeFile("f", second, resolve.Context{})
	require.NoError(t, err)
	assert.Equal(t, normalize.OutcomeAlreadyUTC, report.Fields[0].Outcome)
	assert.Equal(t, out, report.Fields[0].NewValue)
	assert.Empty(t, second.written)
	assert.Equal(t, []string{"list"}, second.events)
}

func TestNormalizeFile_NaiveWithOverrideTwice(t *testing.T) {
	engine := normalize.NewEngine(nil, normalize.Options{})
	rc := resolve.Context{UserOverride: resolve.FixedZone(330)}

	first := newFakeStore(field("t", "2024-03-01T00:30:00"))
	report, err := engine.NormalizeFile("f", first, rc)
	require.NoError(t, err)
	assert.Equal(t, normalize.OutcomeNormalized, report.Fields[0].Outcome)
	assert.False(t, report.Fields[0].Unmarked)
	out := first.written["t"]
	require.Equal(t, "2024-02-29T19:00:00Z", out)

	second := newFakeStore(field("t", out))
	report, err = engine.NormalizeFile("f", second, rc)
	require.NoError(t, err)
	assert.Equal(t, normalize.OutcomeAlreadyUTC, report.Fields[0].Outcome)
	assert.Equal(t, resolve.ProvenanceExplicit, report.Fields[0].Provenance)
	assert.Equal(t, out, report.Fields[0].NewValue)
	assert.Empty(t, second.written)
	assert.Equal(t, []string{"list"}, second.events)
}

func TestNormalizeFile_MinutePrecision(t *testing.T) {
	store := newFakeStore(field("xmp:CreateDate", "2024-03-01T00:30+05:30"))

	report, err := normalize.NewEngine(nil, normalize.Options{}).NormalizeFile("f", store, resolve.Context{})
	require.NoError(t, err)
	assert.Equal(t, normalize.OutcomeNormalized, report.Fields[0].Outcome)
	assert.Equal(t, map[string]string{"xmp:CreateDate": "2024-02-29T19:00Z"}, store.written)
}

func TestNormalizeFile_UnmarkedRewrite(t *testing.T) {
	store := newFakeStore(
		timestamp.RawField{ID: "DateTimeOriginal", Value: "2024:06:15 12:00:00", Hint: timestamp.HintEXIFNaive},
		timestamp.RawField{ID: "DateTime", Value: "2024:06:15 12:00:00+02:00", Hint: timestamp.HintEXIFOffset},
		timestamp.RawField{ID: "DateTimeDigitized", Value: "2024:06:15 10:00:00", Hint: timestamp.HintEXIFNaive},
	)
	rc := resolve.Context{UserOverride: resolve.FixedZone(120)}

	report, err := normalize.NewEngine(nil, normalize.Options{}).NormalizeFile("f", store, rc)
	require.NoError(t, err)
	assert.True(t, report.Fields[0].Unmarked)
	assert.Equal(t, "2024:06:15 10:00:00", report.Fields[0].NewValue)
	assert.False(t, report.Fields[1].Unmarked)
	assert.Equal(t, "2024:06:15 10:00:00+00:00", report.Fields[1].NewValue)
	assert.True(t, report.Fields[2].Unmarked)
}

func TestNormalizeFile_DryRunMatchesLiveRun(t *testing.T) {
	fields := []timestamp.RawField{
		field("a", "2024-03-01T00:30:00+05:30"),
		field("b", "garbage"),
		field("c", "2024-06-15T12:00:00"),
		field("d", "2024:06:15 12:00:00"),
	}
	rc := resolve.Context{GPSDerived: resolve.FixedZone(60)}

	dryStore := newFakeStore(fields...)
	dryLogger := &recordingLogger{}
	dry, err := normalize.NewEngine(dryLogger, normalize.Options{DryRun: true}).NormalizeFile("f", dryStore, rc)
	require.NoError(t, err)

	liveStore := newFakeStore(fields...)
	liveLogger := &recordingLogger{}
	live, err := normalize.NewEngine(liveLogger, normalize.Options{}).NormalizeFile("f", liveStore, rc)
	require.NoError(t, err)

	assert.Equal(t, []string{"list"}, dryStore.events)
	assert.True(t, dry.DryRun)
	require.Len(t, dry.Fields, len(live.Fields))
	for i := range live.Fields {
		assert.Equal(t, live.Fields[i].Outcome, dry.Fields[i].Outcome)
		assert.Equal(t, live.Fields[i].NewValue, dry.Fields[i].NewValue)
		assert.Equal(t, live.Fields[i].Provenance, dry.Fields[i].Provenance)
		assert.False(t, dry.Fields[i].Written)
	}
	assert.Len(t, dryLogger.fields, len(liveLogger.fields))
	assert.Len(t, dryLogger.reports, 1)
}

func TestNormalizeFile_VerboseLogsEveryField(t *testing.T) {
	store := newFakeStore(
		field("a", "2024-02-29T19:00:00Z"),
		field("b", "garbage"),
	)
	logger := &recordingLogger{}

	_, err := normalize.NewEngine(logger, normalize.Options{Verbose: true}).NormalizeFile("f", store, resolve.Context{})
	require.NoError(t, err)
	require.Len(t, logger.fields, 2)
	assert.Equal(t, normalize.OutcomeAlreadyUTC, logger.fields[0].Outcome)
	assert.Equal(t, normalize.OutcomeSkippedMalformed, logger.fields[1].Outcome)
}

func TestNormalizeFile_WriteFailureIsFieldLocal(t *testing.T) {
	store := newFakeStore(
		field("a", "2024-01-01T10:00:00+01:00"),
		field("b", "2024-01-01T10:00:00+02:00"),
	)
	store.writeErr = map[string]error{"a": errors.New("value too long")}

	report, err := normalize.NewEngine(nil, normalize.Options{}).NormalizeFile("f", store, resolve.Context{})
	require.NoError(t, err)
	assert.Equal(t, normalize.OutcomeSkippedUnsupported, report.Fields[0].Outcome)
	assert.Error(t, report.Fields[0].Err)
	assert.Equal(t, normalize.OutcomeNormalized, report.Fields[1].Outcome)
	assert.True(t, report.Fields[1].Written)
	assert.Equal(t, map[string]string{"b": "2024-01-01T08:00:00Z"}, store.written)
}

func TestNormalizeFile_StoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("permission denied")
	logger := &recordingLogger{}

	report, err := normalize.NewEngine(logger, normalize.Options{}).NormalizeFile("f", store, resolve.Context{})
	require.ErrorIs(t, err, normalize.ErrStoreUnavailable)
	assert.ErrorIs(t, report.Err, normalize.ErrStoreUnavailable)
	assert.Empty(t, report.Fields)
	assert.Len(t, logger.reports, 1)
}

func TestNormalizeFile_CommitFailure(t *testing.T) {
	store := newFakeStore(field("a", "2024-01-01T10:00:00+01:00"))
	store.commitErr = errors.New("disk full")

	report, err := normalize.NewEngine(nil, normalize.Options{}).NormalizeFile("f", store, resolve.Context{})
	require.ErrorIs(t, err, normalize.ErrCommit)
	assert.False(t, report.Fields[0].Written)
	assert.Equal(t, normalize.OutcomeSkippedUnsupported, report.Fields[0].Outcome)
	assert.ErrorIs(t, report.Fields[0].Err, normalize.ErrCommit)
	assert.True(t, report.HasSkips())
	assert.False(t, report.Clean())
}

func TestNormalizeFile_CommitFailureKeepsUnwrittenOutcomes(t *testing.T) {
	store := newFakeStore(
		field("a", "2024-01-01T10:00:00+01:00"),
		field("b", "2024-01-01T09:00:00Z"),
	)
	store.commitErr = errors.New("disk full")

	report, err := normalize.NewEngine(nil, normalize.Options{}).NormalizeFile("f", store, resolve.Context{})
	require.ErrorIs(t, err, normalize.ErrCommit)
	assert.Equal(t, normalize.OutcomeSkippedUnsupported, report.Fields[0].Outcome)
	assert.Equal(t, normalize.OutcomeAlreadyUTC, report.Fields[1].Outcome)
	assert.NoError(t, report.Fields[1].Err)
}
