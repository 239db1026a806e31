package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/database"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

type fakeHistory struct {
	records []database.SyncRecord
	err     error
	limit   int
}

func (f *fakeHistory) GetRecent(limit int) ([]database.SyncRecord, error) {
	f.limit = limit
	return f.records, f.err
}

func newTestAPI(t *testing.T, history HistorySource) (*API, *clock.Synchronizer) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	state, err := clock.NewState(-5)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := wwvb.NewDecoder(wwvb.Standard)
	if err != nil {
		t.Fatal(err)
	}
	s := clock.NewSynchronizer(state, dec, log)
	return NewAPI(log, state, s, history), s
}

func do(t *testing.T, h http.HandlerFunc, method, target, body string) *http.Response {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w.Result()
}

func TestAPI_Status(t *testing.T) {
	api, s := newTestAPI(t, nil)

	resp := do(t, api.HandleStatus, http.MethodGet, "/api/status", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	var before StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&before); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if before.Status != "waiting" || before.Clock.Synced {
		t.Errorf("Expected unsynchronized status, got %+v", before)
	}

	s.State().Apply(wwvb.Time{Minute: 30, Hour: 14, DayOfYear: 1, Year: 2023}, time.Now())

	resp = do(t, api.HandleStatus, http.MethodGet, "/api/status", "")
	defer func() { _ = resp.Body.Close() }()
	var after StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&after); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if after.Status != "synchronized" || after.LocalTime != "2023-01-01 09:30" || after.Weekday != "Sunday" {
		t.Errorf("unexpected status %+v", after)
	}
	if after.Clock.Local.DST != wwvb.DSTNone || after.UTCOffset != -5 {
		t.Errorf("unexpected clock fields %+v", after.Clock.Local)
	}
}

func TestAPI_Timezones(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	resp := do(t, api.HandleTimezones, http.MethodGet, "/api/timezones", "")
	defer func() { _ = resp.Body.Close() }()

	var zones []ZoneInfo
	if err := json.NewDecoder(resp.Body).Decode(&zones); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(zones) != 6 || zones[0] != (ZoneInfo{Name: "EST", Offset: -5}) {
		t.Errorf("unexpected zones %+v", zones)
	}
}

func TestAPI_SetTimezone(t *testing.T) {
	api, s := newTestAPI(t, nil)
	s.State().Apply(wwvb.Time{Minute: 0, Hour: 3, DayOfYear: 1, Year: 2023}, time.Now())

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantOffset int
	}{
		{"by zone", `{"zone":"pst"}`, http.StatusOK, -8},
		{"by offset", `{"offset":-7}`, http.StatusOK, -7},
		{"zero offset", `{"offset":0}`, http.StatusOK, 0},
		{"unknown zone", `{"zone":"XYZ"}`, http.StatusBadRequest, 0},
		{"out of range", `{"offset":20}`, http.StatusBadRequest, 0},
		{"empty", `{}`, http.StatusBadRequest, 0},
		{"garbage", `not json`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, api.HandleTimezone, http.MethodPut, "/api/timezone", tt.body)
			defer func() { _ = resp.Body.Close() }()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got TimezoneResponse
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatal(err)
			}
			if got.Offset != tt.wantOffset || s.State().Offset() != tt.wantOffset {
				t.Errorf("offset = %d (state %d), want %d", got.Offset, s.State().Offset(), tt.wantOffset)
			}
		})
	}

	resp := do(t, api.HandleTimezone, http.MethodGet, "/api/timezone", "")
	defer func() { _ = resp.Body.Close() }()
	var cur TimezoneResponse
	if err := json.NewDecoder(resp.Body).Decode(&cur); err != nil {
		t.Fatal(err)
	}
	if cur.Offset != 0 || cur.LocalTime != "2023-01-01 03:00" {
		t.Errorf("GET /api/timezone = %+v", cur)
	}
}

func TestAPI_History(t *testing.T) {
	hist := &fakeHistory{records: []database.SyncRecord{{ID: 1, Result: database.ResultSynced}}}
	api, _ := newTestAPI(t, hist)

	resp := do(t, api.HandleHistory, http.MethodGet, "/api/history?limit=9999", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if hist.limit != MaxHistoryLimit {
		t.Errorf("limit = %d, want clamp to %d", hist.limit, MaxHistoryLimit)
	}
	var records []database.SyncRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("got %d records", len(records))
	}

	resp = do(t, api.HandleHistory, http.MethodGet, "/api/history?limit=-1", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("negative limit status = %d", resp.StatusCode)
	}

	hist.err = errors.New("disk I/O error")
	resp = do(t, api.HandleHistory, http.MethodGet, "/api/history", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("failing store status = %d", resp.StatusCode)
	}
	if hist.limit != DefaultHistoryLimit {
		t.Errorf("default limit = %d", hist.limit)
	}
}

func TestAPI_HistoryDisabled(t *testing.T) {
	api, _ := newTestAPI(t, nil)
	resp := do(t, api.HandleHistory, http.MethodGet, "/api/history", "")
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.StatusCode)
	}
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	api, _ := newTestAPI(t, nil)

	for _, tc := range []struct {
		h      http.HandlerFunc
		method string
	}{
		{api.HandleStatus, http.MethodPost},
		{api.HandleTimezones, http.MethodDelete},
		{api.HandleTimezone, http.MethodPost},
		{api.HandleHistory, http.MethodPut},
	} {
		resp := do(t, tc.h, tc.method, "/api/x", "")
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", tc.method, resp.StatusCode)
		}
	}
}
