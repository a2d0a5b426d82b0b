package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quidome/tznormalize-go/pkg/resolve"
)

// Opener opens the metadata store of a file.
type Opener func(path string) (Store, error)

// GPSLocator is implemented by stores that know where the file was recorded.
type GPSLocator interface {
	Coordinates() (lat, lon float64, ok bool)
}

// ZoneFinder maps a position to the time zone in effect there.
type ZoneFinder interface {
	ZoneAt(lat, lon float64) (*resolve.Zone, error)
}

// Observer is told about every finished file.
type Observer interface {
	Observe(r Report, elapsed time.Duration)
}

// Batch normalizes many files. Files are independent of each other and run
// in parallel; fields within a file stay sequential.
type Batch struct {
	Engine *Engine
	Open   Opener

	// Override is the user-supplied zone for naive timestamps, if any.
	Override *resolve.Zone

	// Zones derives a zone from GPS coordinates. Nil disables it.
	Zones ZoneFinder

	// Workers bounds the number of files processed at once.
	// Values below 1 mean one.
	Workers int

	Observer Observer
	Log      *zap.Logger
}

// Run normalizes paths and returns one report per path, in input order.
// A failing file yields a report with Err set and never stops the batch.
func (b *Batch) Run(ctx context.Context, paths []string) []Report {
	reports := make([]Report, len(paths))

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				reports[i] = Report{File: path, DryRun: b.Engine.opts.DryRun, Err: err}
				return nil
			}
			start := time.Now()
			reports[i] = b.runFile(path)
			if b.Observer != nil {
				b.Observer.Observe(reports[i], time.Since(start))
			}
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

func (b *Batch) runFile(path string) Report {
	store, err := b.Open(path)
	if err != nil {
		r := Report{
			File:   path,
			DryRun: b.Engine.opts.DryRun,
			Err:    fmt.Errorf("%s: %w", path, errors.Join(ErrStoreUnavailable, err)),
		}
		b.Engine.logger.Report(r)
		return r
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	r, _ := b.Engine.NormalizeFile(path, store, b.context(path, store))
	return r
}

func (b *Batch) context(path string, store Store) resolve.Context {
	rc := resolve.Context{UserOverride: b.Override}
	if b.Zones == nil {
		return rc
	}

	loc, ok := store.(GPSLocator)
	if !ok {
		return rc
	}
	lat, lon, ok := loc.Coordinates()
	if !ok {
		return rc
	}

	zone, err := b.Zones.ZoneAt(lat, lon)
	if err != nil {
		b.logger().Debug("no time zone for GPS position",
			zap.String("file", path),
			zap.Float64("lat", lat),
			zap.Float64("lon", lon),
			zap.Error(err))
		return rc
	}
	rc.GPSDerived = zone
	return rc
}

func (b *Batch) logger() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}
