package database

import (
	"time"

	"gorm.io/gorm"
)

// Result values stored in SyncRecord.Result
const (
	ResultSynced               = "synced"
	ResultIncomplete           = "incomplete"
	ResultInvalid              = "invalid"
	ResultMalformedDayOfYear   = "malformed_day_of_year"
	ResultTimezoneReconfigured = "reconfigured"
)

// SyncRecord is one decode attempt or reconfiguration
type SyncRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	Result     string    `gorm:"index;size:32;not null" json:"result"`
	ReceivedAt time.Time `gorm:"index;not null" json:"received_at"`
	BitCount   int       `json:"bit_count"`

	// Decoded UTC fields, zero for failures
	Year      int `json:"year,omitempty"`
	DayOfYear int `json:"day_of_year,omitempty"`
	Hour      int `json:"hour"`
	Minute    int `json:"minute"`

	DST          string  `gorm:"size:16" json:"dst,omitempty"`
	LeapSecond   bool    `json:"leap_second"`
	LocalTime    string  `gorm:"size:32" json:"local_time,omitempty"`
	Offset       int     `json:"offset"`
	Error        string  `gorm:"size:255" json:"error,omitempty"`
	JitterMeanMS float64 `json:"jitter_mean_ms"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for SyncRecord
func (SyncRecord) TableName() string {
	return "sync_records"
}

// BeforeCreate fills in timestamps the caller left empty
func (r *SyncRecord) BeforeCreate(tx *gorm.DB) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.ReceivedAt.IsZero() {
		r.ReceivedAt = r.CreatedAt
	}
	return nil
}

// Succeeded reports whether the record is a successful decode
func (r *SyncRecord) Succeeded() bool {
	return r.Result == ResultSynced
}
