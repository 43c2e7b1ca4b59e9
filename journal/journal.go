// Package journal persists shadow-write failure records to a relational
// table, so operators can drive reconciliation after a rehearsal: list what
// the shadow store missed, replay it, and mark rows resolved.
package journal

import (
	"context"
	"fmt"
	"time"

	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentfold/shadowwrite"
)

// ShadowFailure is one journal row. Injected separates rehearsal noise from
// genuine migration bugs; ResolvedAt is set once an operator has replayed
// or dismissed the failure.
type ShadowFailure struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType   string     `gorm:"not null;index:idx_entity" json:"entity_type"`
	EntityID     string     `gorm:"not null;index:idx_entity" json:"entity_id"`
	Operation    string     `gorm:"not null" json:"operation"`
	ErrorMessage string     `gorm:"type:text;not null" json:"error_message"`
	FaultID      string     `gorm:"index" json:"fault_id,omitempty"`
	RequestID    string     `json:"request_id,omitempty"`
	Injected     bool       `gorm:"not null" json:"injected"`
	OccurredAt   time.Time  `gorm:"not null;index" json:"occurred_at"`
	ResolvedAt   *time.Time `gorm:"index" json:"resolved_at,omitempty"`
}

func (ShadowFailure) TableName() string {
	return "shadow_failures"
}

// Resolved reports whether an operator has dealt with this failure.
func (f *ShadowFailure) Resolved() bool {
	return f.ResolvedAt != nil
}

// Stats summarizes the journal's contents.
type Stats struct {
	Total      int64 `json:"total"`
	Injected   int64 `json:"injected"`
	Real       int64 `json:"real"`
	Unresolved int64 `json:"unresolved"`
}

// Journal is a shadowwrite.FailureHandler that writes one row per failure.
type Journal struct {
	db *gorm.DB
}

// New wraps an existing connection; the journal can share the primary
// store's *gorm.DB.
func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Open dials PostgreSQL for a dedicated journal connection.
func Open(dsn string) (*Journal, error) {
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to journal database: %w", err)
	}
	return &Journal{db: db}, nil
}

// Migrate creates or extends the shadow_failures table.
func (j *Journal) Migrate(ctx context.Context) error {
	return j.db.WithContext(ctx).AutoMigrate(&ShadowFailure{})
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HandleShadowFailure persists the record. The harness swallows any error
// returned here; it still surfaces in the harness's log.
func (j *Journal) HandleShadowFailure(ctx context.Context, record shadowwrite.FailureRecord) error {
	errMsg := ""
	if record.Err != nil {
		errMsg = record.Err.Error()
	}
	row := ShadowFailure{
		EntityType:   record.EntityType,
		EntityID:     record.EntityID,
		Operation:    string(record.Operation),
		ErrorMessage: errMsg,
		FaultID:      record.FaultID,
		RequestID:    record.RequestID,
		Injected:     record.Injected(),
		OccurredAt:   record.OccurredAt,
	}
	if err := j.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("persist shadow failure: %w", err)
	}
	return nil
}

// ListUnresolved returns open failures, oldest first. limit <= 0 means all.
func (j *Journal) ListUnresolved(ctx context.Context, limit int) ([]*ShadowFailure, error) {
	q := j.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("occurred_at")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []*ShadowFailure
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list unresolved shadow failures: %w", err)
	}
	return rows, nil
}

// MarkResolved stamps one failure as dealt with. Resolving an unknown id is
// an error; resolving twice keeps the first timestamp.
func (j *Journal) MarkResolved(ctx context.Context, id uint64) error {
	res := j.db.WithContext(ctx).
		Model(&ShadowFailure{}).
		Where("id = ? AND resolved_at IS NULL", id).
		Update("resolved_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("resolve shadow failure %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := j.db.WithContext(ctx).Model(&ShadowFailure{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("resolve shadow failure %d: %w", id, err)
		}
		if count == 0 {
			return fmt.Errorf("shadow failure %d not found", id)
		}
	}
	return nil
}

// Stats counts journal rows by class.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	model := func() *gorm.DB {
		return j.db.WithContext(ctx).Model(&ShadowFailure{})
	}
	if err := model().Count(&stats.Total).Error; err != nil {
		return Stats{}, fmt.Errorf("count shadow failures: %w", err)
	}
	if err := model().Where("injected").Count(&stats.Injected).Error; err != nil {
		return Stats{}, fmt.Errorf("count injected shadow failures: %w", err)
	}
	stats.Real = stats.Total - stats.Injected
	if err := model().Where("resolved_at IS NULL").Count(&stats.Unresolved).Error; err != nil {
		return Stats{}, fmt.Errorf("count unresolved shadow failures: %w", err)
	}
	return stats, nil
}

// Purge deletes resolved rows older than the cutoff and reports how many
// went away. Unresolved rows are never purged.
func (j *Journal) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := j.db.WithContext(ctx).
		Where("resolved_at IS NOT NULL AND occurred_at < ?", olderThan).
		Delete(&ShadowFailure{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge shadow failures: %w", res.Error)
	}
	return res.RowsAffected, nil
}
