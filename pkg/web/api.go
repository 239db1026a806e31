package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/database"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/timezone"
)

// History limits for /api/history
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// TimeSource provides the current clock state
type TimeSource interface {
	Snapshot() clock.Snapshot
}

// TimezoneSetter changes the configured offset
type TimezoneSetter interface {
	SetTimezone(offset int) (clock.Snapshot, error)
}

// HistorySource lists recent decode attempts
type HistorySource interface {
	GetRecent(limit int) ([]database.SyncRecord, error)
}

// API handles REST API endpoints
type API struct {
	logger   *logger.Logger
	clock    TimeSource
	timezone TimezoneSetter
	history  HistorySource
}

// NewAPI creates a new API instance. history may be nil when persistence is
// disabled.
func NewAPI(log *logger.Logger, clk TimeSource, tz TimezoneSetter, history HistorySource) *API {
	return &API{
		logger:   log,
		clock:    clk,
		timezone: tz,
		history:  history,
	}
}

// StatusResponse is returned by /api/status
type StatusResponse struct {
	Status    string         `json:"status"`
	Service   string         `json:"service"`
	Version   VersionInfo    `json:"version"`
	LocalTime string         `json:"local_time"`
	Weekday   string         `json:"weekday"`
	UTCOffset int            `json:"utc_offset"`
	Clock     clock.Snapshot `json:"clock"`
}

// ZoneInfo is one entry of /api/timezones
type ZoneInfo struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
}

// TimezoneRequest is the body of PUT /api/timezone. Zone takes precedence
// over Offset when both are set.
type TimezoneRequest struct {
	Offset *int   `json:"offset,omitempty"`
	Zone   string `json:"zone,omitempty"`
}

// TimezoneResponse is returned by /api/timezone
type TimezoneResponse struct {
	Offset    int    `json:"offset"`
	UTCOffset int    `json:"utc_offset"`
	LocalTime string `json:"local_time"`
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := a.clock.Snapshot()
	status := "waiting"
	if snap.Synced {
		status = "synchronized"
	}
	a.writeJSON(w, http.StatusOK, StatusResponse{
		Status:    status,
		Service:   "wwvb-sync",
		Version:   GetVersionInfo(),
		LocalTime: snap.Local.String(),
		Weekday:   snap.Local.Weekday.String(),
		UTCOffset: snap.Local.UTCOffsetHours(),
		Clock:     snap,
	})
}

// HandleTimezones handles the /api/timezones endpoint
func (a *API) HandleTimezones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	zones := make([]ZoneInfo, 0)
	for _, name := range timezone.Names() {
		off, _ := timezone.Lookup(name)
		zones = append(zones, ZoneInfo{Name: name, Offset: off})
	}
	a.writeJSON(w, http.StatusOK, zones)
}

// HandleTimezone handles GET and PUT on /api/timezone
func (a *API) HandleTimezone(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.writeJSON(w, http.StatusOK, timezoneResponse(a.clock.Snapshot()))
	case http.MethodPut:
		var req TimezoneRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		offset, err := req.resolve()
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		snap, err := a.timezone.SetTimezone(offset)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.logger.Info("Timezone changed via API", logger.Int("offset", offset))
		a.writeJSON(w, http.StatusOK, timezoneResponse(snap))
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleHistory handles the /api/history endpoint
func (a *API) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if a.history == nil {
		a.writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	limit := DefaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxHistoryLimit)
	}

	records, err := a.history.GetRecent(limit)
	if err != nil {
		a.logger.Error("Failed to load history", logger.Error(err))
		a.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if records == nil {
		records = []database.SyncRecord{}
	}
	a.writeJSON(w, http.StatusOK, records)
}

func (req TimezoneRequest) resolve() (int, error) {
	if req.Zone != "" {
		off, ok := timezone.Lookup(strings.ToUpper(req.Zone))
		if !ok {
			return 0, errors.New("unknown zone " + req.Zone)
		}
		return off, nil
	}
	if req.Offset == nil {
		return 0, errors.New("offset or zone is required")
	}
	return *req.Offset, nil
}

func timezoneResponse(snap clock.Snapshot) TimezoneResponse {
	return TimezoneResponse{
		Offset:    snap.Offset,
		UTCOffset: snap.Local.UTCOffsetHours(),
		LocalTime: snap.Local.String(),
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]interface{}{
		"error": msg,
		"time":  time.Now().Unix(),
	})
}
