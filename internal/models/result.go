package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ResultStatus classifies one executed check.
type ResultStatus string

const (
	ResultUp      ResultStatus = "up"
	ResultDown    ResultStatus = "down"
	ResultError   ResultStatus = "error"
	ResultTimeout ResultStatus = "timeout"
)

// MonitorResult is the persisted, evaluated record of one executed check.
// Rows are append-only and never mutated after insert.
type MonitorResult struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	MonitorID uuid.UUID    `json:"monitor_id" gorm:"type:uuid;not null;index:idx_monitor_checked"`
	CheckedAt time.Time    `json:"checked_at" gorm:"not null;index:idx_monitor_checked,sort:desc"`
	Status    ResultStatus `json:"status" gorm:"not null"`

	// Elapsed time of the check. Non-negative even on timeout: it records
	// real elapsed time at cancellation, not a sentinel.
	ResponseTimeMs int64 `json:"response_time_ms"`

	Details    map[string]interface{} `json:"details" gorm:"-"`
	DetailsRaw string                 `json:"-" gorm:"column:details;type:jsonb"`

	IsUp                    bool `json:"is_up"`
	IsStatusChange          bool `json:"is_status_change"`
	ConsecutiveFailureCount int  `json:"consecutive_failure_count"`
	AlertsSentForFailure    int  `json:"alerts_sent_for_failure"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for MonitorResult
func (MonitorResult) TableName() string {
	return "monitor_results"
}

// BeforeSave marshals Details to the JSON column (GORM hook)
func (r *MonitorResult) BeforeSave(tx *gorm.DB) error {
	if r.Details != nil {
		raw, err := json.Marshal(r.Details)
		if err != nil {
			return err
		}
		r.DetailsRaw = string(raw)
	}
	return nil
}

// AfterFind unmarshals the Details JSON after loading (GORM hook)
func (r *MonitorResult) AfterFind(tx *gorm.DB) error {
	if r.DetailsRaw != "" {
		return json.Unmarshal([]byte(r.DetailsRaw), &r.Details)
	}
	return nil
}

// Failing reports whether the result counts against the failure streak.
func (r *MonitorResult) Failing() bool {
	return !r.IsUp
}
