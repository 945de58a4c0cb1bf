package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

const (
	ImportRunStatusRunning = "running"
	ImportRunStatusSuccess = "success"
	ImportRunStatusPartial = "partial"
	ImportRunStatusFailed  = "failed"
)

const (
	ImportErrorUnknownField   = "unknown_field"
	ImportErrorAmbiguousMatch = "ambiguous_match"
	ImportErrorMissingKey     = "missing_key"
	ImportErrorNonCatalog     = "non_catalog_missing"
	ImportErrorStore          = "store_error"
	ImportErrorCanceled       = "canceled"
)

var ErrImportRunCompleted = errors.New("import run already completed")

type ImportRun struct {
	ID         uint       `gorm:"primary_key" json:"id"`
	RunId      string     `gorm:"uniqueIndex;size:64;not null" json:"run_id"`
	Source     string     `gorm:"size:512" json:"source"`
	Table      string     `gorm:"column:target_table;size:128" json:"table"`
	Status     string     `gorm:"size:20;not null" json:"status"`
	DryRun     bool       `gorm:"default:false" json:"dry_run"`
	RowCount   int        `json:"row_count"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	ErrorCount int        `json:"error_count"`
	StatsJSON  []byte     `gorm:"type:json" json:"stats"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	DurationMs int64      `json:"duration_ms"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type ImportRowError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	RunId       string    `gorm:"index;size:64;not null" json:"run_id"`
	RowNumber   int       `json:"row_number"`
	SKU         string    `gorm:"column:sku;size:128" json:"sku"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ImportStats are the per-run counters written when a run finishes.
type ImportStats struct {
	Rows    int `json:"rows"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Planned int `json:"planned"`
	Failed  int `json:"failed"`
}

func (s ImportStats) Status() string {
	switch {
	case s.Failed == 0:
		return ImportRunStatusSuccess
	case s.Failed >= s.Rows:
		return ImportRunStatusFailed
	default:
		return ImportRunStatusPartial
	}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// BeginImportRun inserts a running ledger row. Reusing the run id of an unfinished or
// failed run restarts it; reusing the id of a successful run returns ErrImportRunCompleted.
func BeginImportRun(ctx context.Context, db *gorm.DB, runId, source, table string, dryRun bool) (*ImportRun, error) {
	db = db.WithContext(ctx)
	now := time.Now()
	run := ImportRun{
		RunId:     runId,
		Source:    source,
		Table:     table,
		Status:    ImportRunStatusRunning,
		DryRun:    dryRun,
		StartedAt: &now,
	}
	if err := db.Create(&run).Error; err == nil {
		return &run, nil
	} else if !isDuplicateKeyErr(err) {
		return nil, err
	}

	var existing ImportRun
	if err := db.Where("run_id = ?", runId).First(&existing).Error; err != nil {
		return nil, err
	}
	if existing.Status == ImportRunStatusSuccess {
		return &existing, ErrImportRunCompleted
	}
	if err := db.Model(&existing).Updates(map[string]interface{}{
		"status":      ImportRunStatusRunning,
		"started_at":  now,
		"finished_at": nil,
		"dry_run":     dryRun,
	}).Error; err != nil {
		return nil, err
	}
	existing.Status = ImportRunStatusRunning
	existing.StartedAt = &now
	existing.FinishedAt = nil
	existing.DryRun = dryRun
	return &existing, nil
}

func RecordRowError(ctx context.Context, db *gorm.DB, rowErr *ImportRowError) error {
	return db.WithContext(ctx).Create(rowErr).Error
}

func FinishImportRun(ctx context.Context, db *gorm.DB, run *ImportRun, stats ImportStats) error {
	finishedAt := time.Now()
	var durationMs int64
	if run.StartedAt != nil {
		durationMs = finishedAt.Sub(*run.StartedAt).Milliseconds()
	}
	statsJSON, _ := json.Marshal(stats)
	status := stats.Status()
	if err := db.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":      status,
		"finished_at": finishedAt,
		"duration_ms": durationMs,
		"row_count":   stats.Rows,
		"created":     stats.Created,
		"updated":     stats.Updated,
		"error_count": stats.Failed,
		"stats_json":  statsJSON,
	}).Error; err != nil {
		return err
	}
	run.Status = status
	run.FinishedAt = &finishedAt
	run.DurationMs = durationMs
	run.RowCount = stats.Rows
	run.Created = stats.Created
	run.Updated = stats.Updated
	run.ErrorCount = stats.Failed
	run.StatsJSON = statsJSON
	return nil
}
