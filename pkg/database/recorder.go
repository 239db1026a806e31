package database

import (
	"context"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
)

// pruneEvery is how many inserts pass between retention sweeps
const pruneEvery = 100

// Recorder stores every pipeline event as a SyncRecord
type Recorder struct {
	repo      *SyncRepository
	log       *logger.Logger
	retention time.Duration
	inserts   int
}

// NewRecorder creates a listener writing to repo. Records older than
// retention are pruned periodically; zero keeps everything.
func NewRecorder(repo *SyncRepository, retention time.Duration, log *logger.Logger) *Recorder {
	return &Recorder{
		repo:      repo,
		log:       log.WithComponent("history"),
		retention: retention,
	}
}

// HandleEvent implements clock.Listener. It is only called from the
// synchronizer goroutine.
func (r *Recorder) HandleEvent(_ context.Context, ev clock.Event) error {
	rec := recordFor(ev)
	if err := r.repo.Create(rec); err != nil {
		return err
	}

	r.inserts++
	if r.retention > 0 && r.inserts%pruneEvery == 0 {
		n, err := r.repo.DeleteOlderThan(ev.At.Add(-r.retention))
		if err != nil {
			return err
		}
		if n > 0 {
			r.log.Debug("Pruned sync history", logger.Int("deleted", int(n)))
		}
	}
	return nil
}

func recordFor(ev clock.Event) *SyncRecord {
	snap := ev.Snapshot
	rec := &SyncRecord{
		ReceivedAt: ev.At,
		BitCount:   ev.BitCount,
		Offset:     snap.Offset,
	}
	if len(ev.JitterMS) > 0 {
		rec.JitterMeanMS = stat.Mean(ev.JitterMS, nil)
	}

	switch ev.Type {
	case clock.EventFailed:
		rec.Result = ev.Reason.String()
		if ev.Err != nil {
			rec.Error = ev.Err.Error()
		}
		return rec
	case clock.EventReconfigured:
		rec.Result = ResultTimezoneReconfigured
	default:
		rec.Result = ResultSynced
	}

	rec.Year = snap.UTC.Year
	rec.DayOfYear = snap.UTC.DayOfYear
	rec.Hour = snap.UTC.Hour
	rec.Minute = snap.UTC.Minute
	rec.DST = snap.UTC.DST.String()
	rec.LeapSecond = snap.UTC.LeapSecondPending
	rec.LocalTime = snap.Local.String()
	return rec
}
