package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/probewatch/probewatch/internal/models"
)

// ErrNotFound is returned when a monitor does not exist.
var ErrNotFound = errors.New("not found")

// Store is the gorm-backed persistence layer for monitors and results.
type Store struct {
	db *gorm.DB
}

// New creates a store over an open database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetMonitor loads one monitor by id.
func (s *Store) GetMonitor(ctx context.Context, id uuid.UUID) (*models.Monitor, error) {
	var m models.Monitor
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading monitor %s: %w", id, err)
	}
	return &m, nil
}

// ListMonitors returns all monitors, newest first.
func (s *Store) ListMonitors(ctx context.Context) ([]*models.Monitor, error) {
	var monitors []*models.Monitor
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&monitors).Error
	if err != nil {
		return nil, fmt.Errorf("listing monitors: %w", err)
	}
	return monitors, nil
}

// ListSchedulable returns every monitor that should have a recurring entry:
// enabled and neither paused nor in maintenance.
func (s *Store) ListSchedulable(ctx context.Context) ([]*models.Monitor, error) {
	var monitors []*models.Monitor
	err := s.db.WithContext(ctx).
		Where("enabled = ? AND status NOT IN ?", true,
			[]models.MonitorStatus{models.StatusPaused, models.StatusMaintenance}).
		Find(&monitors).Error
	if err != nil {
		return nil, fmt.Errorf("listing schedulable monitors: %w", err)
	}
	return monitors, nil
}

// CreateMonitor inserts a new monitor row.
func (s *Store) CreateMonitor(ctx context.Context, m *models.Monitor) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}
	return nil
}

// SaveMonitor persists the full monitor row.
func (s *Store) SaveMonitor(ctx context.Context, m *models.Monitor) error {
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("saving monitor %s: %w", m.ID, err)
	}
	return nil
}

// DeleteMonitor removes a monitor and its results and pending jobs.
func (s *Store) DeleteMonitor(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("monitor_id = ?", id).Delete(&models.ExecutionJob{}).Error; err != nil {
			return err
		}
		if err := tx.Where("monitor_id = ?", id).Delete(&models.MonitorResult{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Monitor{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpdateMonitorFields applies a partial column update to a monitor row.
func (s *Store) UpdateMonitorFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Monitor{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating monitor %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// LatestResult returns the most recent result for a monitor, or nil when
// the monitor has never been checked.
func (s *Store) LatestResult(ctx context.Context, monitorID uuid.UUID) (*models.MonitorResult, error) {
	var r models.MonitorResult
	err := s.db.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("checked_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading latest result for %s: %w", monitorID, err)
	}
	return &r, nil
}

// ListResults returns recent results for a monitor, newest first.
func (s *Store) ListResults(ctx context.Context, monitorID uuid.UUID, limit int) ([]*models.MonitorResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []*models.MonitorResult
	err := s.db.WithContext(ctx).
		Where("monitor_id = ?", monitorID).
		Order("checked_at DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("listing results for %s: %w", monitorID, err)
	}
	return results, nil
}

// AppendResult inserts a result row and applies the matching monitor column
// updates in one transaction. Both succeed or both fail: a result without a
// consistent monitor status update is a data-integrity defect.
func (s *Store) AppendResult(ctx context.Context, r *models.MonitorResult, monitorUpdates map[string]interface{}) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(r).Error; err != nil {
			return fmt.Errorf("inserting result: %w", err)
		}
		if len(monitorUpdates) == 0 {
			return nil
		}
		err := tx.Model(&models.Monitor{}).
			Where("id = ?", r.MonitorID).
			Updates(monitorUpdates).Error
		if err != nil {
			return fmt.Errorf("updating monitor status: %w", err)
		}
		return nil
	})
}

// MarkSSLAlert records that an SSL-expiry alert was emitted now, for the
// once-per-calendar-day cap.
func (s *Store) MarkSSLAlert(ctx context.Context, monitorID uuid.UUID, at time.Time) error {
	return s.UpdateMonitorFields(ctx, monitorID, map[string]interface{}{
		"last_ssl_alert_at": at,
	})
}

// PruneResults deletes result rows older than the cutoff.
func (s *Store) PruneResults(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("checked_at < ?", cutoff).
		Delete(&models.MonitorResult{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning results: %w", res.Error)
	}
	return res.RowsAffected, nil
}
