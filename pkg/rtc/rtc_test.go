package rtc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/timezone"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

type memorySink struct {
	got []DateTime
	err error
}

func (m *memorySink) SetDateTime(_ context.Context, dt DateTime) error {
	if m.err != nil {
		return m.err
	}
	m.got = append(m.got, dt)
	return nil
}

func syncedSnapshot() clock.Snapshot {
	utc := wwvb.Time{Minute: 30, Hour: 14, DayOfYear: 1, Year: 2023}
	return clock.Snapshot{
		Synced: true,
		UTC:    utc,
		Local:  timezone.Localize(utc, -5),
		Offset: -5,
	}
}

func TestFromSnapshot(t *testing.T) {
	dt := FromSnapshot(syncedSnapshot())
	want := DateTime{
		Year: 2023, Month: 1, Day: 1, Weekday: 6, Hour: 9, Minute: 30,
		UTCOffset: -5 * time.Hour,
		UTC:       time.Date(2023, 1, 1, 14, 30, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, dt); diff != "" {
		t.Errorf("FromSnapshot() mismatch (-want +got):\n%s", diff)
	}
	if dt.String() != "2023-01-01 09:30" {
		t.Errorf("String() = %q", dt.String())
	}
}

func TestFromSnapshot_EveningKeepsDecodedDate(t *testing.T) {
	utc := wwvb.Time{Minute: 30, Hour: 2, DayOfYear: 1, Year: 2023}
	dt := FromSnapshot(clock.Snapshot{Synced: true, UTC: utc, Local: timezone.Localize(utc, -5), Offset: -5})

	if dt.Year != 2023 || dt.Month != 1 || dt.Day != 1 || dt.Hour != 21 || dt.Minute != 30 {
		t.Errorf("local fields = %s, want 2023-01-01 21:30", dt)
	}
	if !dt.UTC.Equal(time.Date(2023, 1, 1, 2, 30, 0, 0, time.UTC)) {
		t.Errorf("UTC = %v, want 2023-01-01 02:30 UTC", dt.UTC)
	}
}

func TestWriter_OnlyWritesSyncedTime(t *testing.T) {
	sink := &memorySink{}
	w := NewWriter(logger.New(logger.Config{Level: "error"}), sink)
	ctx := context.Background()

	_ = w.HandleEvent(ctx, clock.Event{Type: clock.EventFailed, Snapshot: syncedSnapshot()})
	_ = w.HandleEvent(ctx, clock.Event{Type: clock.EventReconfigured, Snapshot: clock.Snapshot{}})
	if len(sink.got) != 0 {
		t.Fatalf("expected no writes, got %d", len(sink.got))
	}

	if err := w.HandleEvent(ctx, clock.Event{Type: clock.EventSynced, Snapshot: syncedSnapshot()}); err != nil {
		t.Fatal(err)
	}
	if err := w.HandleEvent(ctx, clock.Event{Type: clock.EventReconfigured, Snapshot: syncedSnapshot()}); err != nil {
		t.Fatal(err)
	}
	if len(sink.got) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(sink.got))
	}
	if sink.got[0].Second != 0 || sink.got[0].Subsecond != 0 {
		t.Error("seconds must be zero")
	}
}

func TestWriter_JoinsSinkErrors(t *testing.T) {
	boom := errors.New("boom")
	good := &memorySink{}
	w := NewWriter(nil, &memorySink{err: boom}, good)

	err := w.HandleEvent(context.Background(), clock.Event{Type: clock.EventSynced, Snapshot: syncedSnapshot()})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain boom, got %v", err)
	}
	if len(good.got) != 1 {
		t.Error("a failing sink must not prevent later sinks from being written")
	}
}

func TestSystemClock_SetsUTC(t *testing.T) {
	var got unix.Timeval
	s := &SystemClock{settimeofday: func(tv *unix.Timeval) error {
		got = *tv
		return nil
	}}
	if err := s.SetDateTime(context.Background(), FromSnapshot(syncedSnapshot())); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2023, 1, 1, 14, 30, 0, 0, time.UTC).Unix()
	if int64(got.Sec) != want {
		t.Errorf("Sec = %d, want %d", got.Sec, want)
	}

	if err := s.SetDateTime(context.Background(), DateTime{Year: 2023, Month: 1, Day: 1}); err == nil {
		t.Error("expected error without a UTC instant")
	}
}

type fakeRegisters struct {
	address, quantity uint16
	value             []byte
}

func (f *fakeRegisters) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.address, f.quantity, f.value = address, quantity, value
	return nil, nil
}

func TestModbus_WritesRegisterBlock(t *testing.T) {
	fake := &fakeRegisters{}
	m := &Modbus{cfg: ModbusConfig{Address: 100}, client: fake}

	if err := m.SetDateTime(context.Background(), FromSnapshot(syncedSnapshot())); err != nil {
		t.Fatal(err)
	}
	if fake.address != 100 || fake.quantity != RegisterCount {
		t.Errorf("wrote %d registers at %d", fake.quantity, fake.address)
	}
	want := []byte{0x07, 0xE7, 0, 1, 0, 1, 0, 6, 0, 9, 0, 30, 0, 0, 0, 0}
	if string(fake.value) != string(want) {
		t.Errorf("payload = %v, want %v", fake.value, want)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close without handler returned %v", err)
	}
}

func TestNewModbus_RequiresEndpoint(t *testing.T) {
	if _, err := NewModbus(ModbusConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
