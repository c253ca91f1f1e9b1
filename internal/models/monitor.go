package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MonitorType identifies the check strategy for a monitor. Fixed at
// creation, immutable thereafter.
type MonitorType string

const (
	TypeHTTPRequest   MonitorType = "http_request"
	TypeWebsite       MonitorType = "website"
	TypePingHost      MonitorType = "ping_host"
	TypePortCheck     MonitorType = "port_check"
	TypeSyntheticTest MonitorType = "synthetic_test"
)

// Valid reports whether t names a known monitor type.
func (t MonitorType) Valid() bool {
	switch t {
	case TypeHTTPRequest, TypeWebsite, TypePingHost, TypePortCheck, TypeSyntheticTest:
		return true
	}
	return false
}

// MonitorStatus is the server-computed state of a monitor. Only pause and
// maintenance are settable through the API.
type MonitorStatus string

const (
	StatusPending     MonitorStatus = "pending"
	StatusUp          MonitorStatus = "up"
	StatusDown        MonitorStatus = "down"
	StatusPaused      MonitorStatus = "paused"
	StatusMaintenance MonitorStatus = "maintenance"
	StatusError       MonitorStatus = "error"
)

// Monitor represents a probe definition
type Monitor struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	OrgID     uuid.UUID `json:"org_id" gorm:"type:uuid;not null;index"`
	ProjectID uuid.UUID `json:"project_id" gorm:"type:uuid;not null;index"`
	CreatedBy uuid.UUID `json:"created_by" gorm:"type:uuid;not null"`
	Name      string    `json:"name" gorm:"not null"`

	Type             MonitorType   `json:"type" gorm:"not null;index"`
	Target           string        `json:"target" gorm:"not null"`
	FrequencySeconds int           `json:"frequency_seconds" gorm:"default:60"`
	Enabled          bool          `json:"enabled" gorm:"default:true;index"`
	Status           MonitorStatus `json:"status" gorm:"default:'pending';index"`

	Config    *MonitorConfig `json:"config" gorm:"-"`
	ConfigRaw string         `json:"-" gorm:"column:config;type:jsonb"`

	AlertConfig    AlertConfig     `json:"alert_config" gorm:"-"`
	AlertConfigRaw string          `json:"-" gorm:"column:alert_config;type:jsonb"`
	LocationConfig *LocationConfig `json:"location_config,omitempty" gorm:"-"`
	LocationRaw    string          `json:"-" gorm:"column:location_config;type:jsonb"`

	LastCheckAt        *time.Time `json:"last_check_at,omitempty"`
	LastStatusChangeAt *time.Time `json:"last_status_change_at,omitempty"`
	MutedUntil         *time.Time `json:"muted_until,omitempty"`
	LastSSLCheckAt       *time.Time `json:"last_ssl_check_at,omitempty"`
	LastSSLAlertAt       *time.Time `json:"last_ssl_alert_at,omitempty"`
	LastSSLDaysRemaining *int       `json:"last_ssl_days_remaining,omitempty"`
	ScheduledJobID     string     `json:"scheduled_job_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Monitor
func (Monitor) TableName() string {
	return "monitors"
}

// BeforeSave marshals the typed config blocks to JSON columns (GORM hook)
func (m *Monitor) BeforeSave(tx *gorm.DB) error {
	if m.Config != nil {
		raw, err := json.Marshal(m.Config.variant())
		if err != nil {
			return err
		}
		m.ConfigRaw = string(raw)
	}

	alertRaw, err := json.Marshal(m.AlertConfig)
	if err != nil {
		return err
	}
	m.AlertConfigRaw = string(alertRaw)

	if m.LocationConfig != nil {
		locRaw, err := json.Marshal(m.LocationConfig)
		if err != nil {
			return err
		}
		m.LocationRaw = string(locRaw)
	}

	return nil
}

// AfterFind unmarshals the JSON columns back into typed config (GORM hook)
func (m *Monitor) AfterFind(tx *gorm.DB) error {
	if m.ConfigRaw != "" {
		cfg, err := ParseMonitorConfig(m.Type, []byte(m.ConfigRaw))
		if err != nil {
			return err
		}
		m.Config = cfg
	}

	if m.AlertConfigRaw != "" {
		if err := json.Unmarshal([]byte(m.AlertConfigRaw), &m.AlertConfig); err != nil {
			return err
		}
	}

	if m.LocationRaw != "" {
		var loc LocationConfig
		if err := json.Unmarshal([]byte(m.LocationRaw), &loc); err != nil {
			return err
		}
		m.LocationConfig = &loc
	}

	return nil
}

// Muted reports whether alert emission is suppressed at the given instant.
func (m *Monitor) Muted(now time.Time) bool {
	return m.MutedUntil != nil && now.Before(*m.MutedUntil)
}

// Schedulable reports whether the monitor should have a recurring entry.
func (m *Monitor) Schedulable() bool {
	return m.Enabled && m.Status != StatusPaused && m.Status != StatusMaintenance
}

// AlertConfig controls when and where alerts are emitted for a monitor.
type AlertConfig struct {
	Enabled           bool     `json:"enabled"`
	ProviderIDs       []string `json:"provider_ids,omitempty"`
	OnFailure         bool     `json:"on_failure"`
	OnRecovery        bool     `json:"on_recovery"`
	OnSSLExpiration   bool     `json:"on_ssl_expiration"`
	OnTimeout         bool     `json:"on_timeout"`
	FailureThreshold  int      `json:"failure_threshold"`
	RecoveryThreshold int      `json:"recovery_threshold"`
	SSLDaysWarning    int      `json:"ssl_days_warning"`
}

// Normalize applies defaults to zero-valued thresholds.
func (a *AlertConfig) Normalize() {
	if a.FailureThreshold < 1 {
		a.FailureThreshold = 1
	}
	if a.RecoveryThreshold < 1 {
		a.RecoveryThreshold = 1
	}
	if a.SSLDaysWarning < 1 {
		a.SSLDaysWarning = 14
	}
}

// AggregationStrategy selects how per-location outcomes reduce to one status.
type AggregationStrategy string

const (
	StrategyAll      AggregationStrategy = "all"
	StrategyMajority AggregationStrategy = "majority"
	StrategyAny      AggregationStrategy = "any"
	StrategyCustom   AggregationStrategy = "custom"
)

// LocationConfig enables multi-location probing for a monitor.
type LocationConfig struct {
	Enabled          bool                `json:"enabled"`
	Locations        []string            `json:"locations"`
	Strategy         AggregationStrategy `json:"strategy"`
	ThresholdPercent int                 `json:"threshold_percent"`
}

// Validate rejects invalid location configuration at save time, not run time.
func (l *LocationConfig) Validate() error {
	if !l.Enabled {
		return nil
	}
	if len(l.Locations) == 0 {
		return &ConfigError{Field: "locations", Reason: "at least one location is required"}
	}
	switch l.Strategy {
	case StrategyAll, StrategyMajority, StrategyAny:
	case StrategyCustom:
		if l.ThresholdPercent < 1 || l.ThresholdPercent > 100 {
			return &ConfigError{Field: "threshold_percent", Reason: "must be between 1 and 100"}
		}
	default:
		return &ConfigError{Field: "strategy", Reason: "must be one of all, majority, any, custom"}
	}
	return nil
}

// ConfigError reports an invalid monitor configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "invalid config field " + e.Field + ": " + e.Reason
}
