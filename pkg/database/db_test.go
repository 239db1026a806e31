package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "sync.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	path := filepath.Join(t.TempDir(), "nested", "dir", "sync.db")
	db, err := NewDB(Config{Path: path}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if db.GetDB() == nil {
		t.Error("Expected non-nil database connection")
	}
	var mode string
	if err := db.GetDB().Raw("PRAGMA journal_mode").Scan(&mode).Error; err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestSyncRecord_BeforeCreate(t *testing.T) {
	repo := NewSyncRepository(newTestDB(t).GetDB())

	rec := &SyncRecord{Result: ResultIncomplete, BitCount: 12}
	if err := repo.Create(rec); err != nil {
		t.Fatalf("Failed to create record: %v", err)
	}
	if rec.ID == 0 {
		t.Error("Expected non-zero ID after creation")
	}
	if rec.CreatedAt.IsZero() || rec.ReceivedAt.IsZero() {
		t.Error("Expected timestamps to be set by hook")
	}
	if rec.Succeeded() {
		t.Error("incomplete record must not report success")
	}
}

func TestSyncRepository_QueriesAndPrune(t *testing.T) {
	repo := NewSyncRepository(newTestDB(t).GetDB())
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	results := []string{ResultSynced, ResultInvalid, ResultSynced, ResultIncomplete, ResultSynced}
	for i, res := range results {
		rec := &SyncRecord{Result: res, ReceivedAt: base.Add(time.Duration(i) * time.Minute), Minute: i}
		if err := repo.Create(rec); err != nil {
			t.Fatal(err)
		}
	}

	recent, err := repo.GetRecent(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 2 || recent[0].Minute != 4 || recent[1].Minute != 3 {
		t.Errorf("GetRecent returned %+v", recent)
	}

	synced, err := repo.GetByResult(ResultSynced, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(synced) != 3 {
		t.Errorf("GetByResult(synced) = %d records, want 3", len(synced))
	}

	last, err := repo.LastSuccess()
	if err != nil || last == nil || last.Minute != 4 {
		t.Fatalf("LastSuccess() = %+v, %v", last, err)
	}

	counts, err := repo.CountByResult()
	if err != nil {
		t.Fatal(err)
	}
	if counts[ResultSynced] != 3 || counts[ResultInvalid] != 1 || counts[ResultIncomplete] != 1 {
		t.Errorf("CountByResult() = %v", counts)
	}

	n, err := repo.DeleteOlderThan(base.Add(2 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DeleteOlderThan removed %d, want 2", n)
	}
}

func TestSyncRepository_LastSuccessEmpty(t *testing.T) {
	repo := NewSyncRepository(newTestDB(t).GetDB())
	last, err := repo.LastSuccess()
	if err != nil || last != nil {
		t.Errorf("LastSuccess() on empty table = %+v, %v", last, err)
	}
}

func TestRecorder_StoresEvents(t *testing.T) {
	repo := NewSyncRepository(newTestDB(t).GetDB())
	rec := NewRecorder(repo, 0, logger.New(logger.Config{Level: "error"}))
	ctx := context.Background()
	at := time.Date(2023, 1, 1, 14, 31, 0, 0, time.UTC)

	state, _ := clock.NewState(-5)
	snap := state.Apply(wwvb.Time{Minute: 30, Hour: 14, DayOfYear: 1, Year: 2023, DST: wwvb.DSTActive}, at)

	events := []clock.Event{
		{Type: clock.EventSynced, At: at, Snapshot: snap, BitCount: 60, JitterMS: []float64{1, 3}},
		{Type: clock.EventFailed, At: at.Add(time.Minute), Snapshot: snap, Reason: wwvb.ReasonIncomplete,
			Err: wwvb.ErrIncompleteFrame, BitCount: 12},
		{Type: clock.EventFailed, At: at.Add(2 * time.Minute), Snapshot: snap, Reason: wwvb.ReasonInvalidFieldRange,
			Err: errors.New("minute out of range"), BitCount: 60},
	}
	for _, ev := range events {
		if err := rec.HandleEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.GetRecent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("stored %d records, want 3", len(all))
	}

	ok := all[2]
	if !ok.Succeeded() || ok.Hour != 14 || ok.Minute != 30 || ok.DST != "active" {
		t.Errorf("unexpected success record %+v", ok)
	}
	if ok.LocalTime != "2023-01-01 10:30" {
		t.Errorf("LocalTime = %q", ok.LocalTime)
	}
	if ok.JitterMeanMS != 2 {
		t.Errorf("JitterMeanMS = %v, want 2", ok.JitterMeanMS)
	}
	if all[1].Result != ResultIncomplete || all[0].Result != ResultInvalid {
		t.Errorf("failure results = %q, %q", all[1].Result, all[0].Result)
	}
	if all[0].Year != 0 || all[0].Error == "" {
		t.Errorf("failure record should carry error only: %+v", all[0])
	}
}

func TestRecorder_Prunes(t *testing.T) {
	repo := NewSyncRepository(newTestDB(t).GetDB())
	rec := NewRecorder(repo, time.Hour, logger.New(logger.Config{Level: "error"}))
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < pruneEvery; i++ {
		ev := clock.Event{Type: clock.EventFailed, At: start.Add(time.Duration(i) * time.Minute), Reason: wwvb.ReasonIncomplete}
		if err := rec.HandleEvent(context.Background(), ev); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := repo.CountByResult()
	if err != nil {
		t.Fatal(err)
	}
	// last event at minute 99, so only minutes 39..99 survive
	if counts[ResultIncomplete] != 61 {
		t.Errorf("kept %d records, want 61", counts[ResultIncomplete])
	}
}
