package database

import (
	"time"

	"gorm.io/gorm"
)

// SyncRepository handles sync history database operations
type SyncRepository struct {
	db *gorm.DB
}

// NewSyncRepository creates a new sync history repository
func NewSyncRepository(db *gorm.DB) *SyncRepository {
	return &SyncRepository{db: db}
}

// Create adds a new record
func (r *SyncRepository) Create(rec *SyncRecord) error {
	return r.db.Create(rec).Error
}

// GetRecent retrieves the most recent N records
func (r *SyncRepository) GetRecent(limit int) ([]SyncRecord, error) {
	var records []SyncRecord
	err := r.db.Order("received_at DESC, id DESC").Limit(limit).Find(&records).Error
	return records, err
}

// GetByResult retrieves the most recent N records with the given result
func (r *SyncRepository) GetByResult(result string, limit int) ([]SyncRecord, error) {
	var records []SyncRecord
	err := r.db.Where("result = ?", result).
		Order("received_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// LastSuccess returns the newest successful decode, or nil when there is none
func (r *SyncRepository) LastSuccess() (*SyncRecord, error) {
	var rec SyncRecord
	err := r.db.Where("result = ?", ResultSynced).
		Order("received_at DESC, id DESC").
		Limit(1).
		Find(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ID == 0 {
		return nil, nil
	}
	return &rec, nil
}

// CountByResult returns the number of records per result
func (r *SyncRepository) CountByResult() (map[string]int64, error) {
	var rows []struct {
		Result string
		Count  int64
	}
	err := r.db.Model(&SyncRecord{}).
		Select("result, COUNT(*) AS count").
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Result] = row.Count
	}
	return counts, nil
}

// DeleteOlderThan deletes records received before the specified time
func (r *SyncRepository) DeleteOlderThan(before time.Time) (int64, error) {
	result := r.db.Where("received_at < ?", before).Delete(&SyncRecord{})
	return result.RowsAffected, result.Error
}
