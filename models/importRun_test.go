package models

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestImportStatsStatus(t *testing.T) {
	tests := []struct {
		name  string
		stats ImportStats
		want  string
	}{
		{"empty", ImportStats{}, ImportRunStatusSuccess},
		{"all ok", ImportStats{Rows: 3, Created: 2, Updated: 1}, ImportRunStatusSuccess},
		{"some failed", ImportStats{Rows: 3, Created: 2, Failed: 1}, ImportRunStatusPartial},
		{"all failed", ImportStats{Rows: 2, Failed: 2}, ImportRunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stats.Status())
		})
	}
}

func TestBeginImportRun_New(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `import_runs`")).
		WillReturnResult(sqlmock.NewResult(11, 1))

	run, err := BeginImportRun(context.Background(), db, "run-1", "lines.xlsx", "Project PO", false)
	require.NoError(t, err)
	assert.Equal(t, uint(11), run.ID)
	assert.Equal(t, ImportRunStatusRunning, run.Status)
	assert.Equal(t, "Project PO", run.Table)
	assert.NotNil(t, run.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginImportRun_RestartsUnfinishedRun(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `import_runs`")).
		WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'run-1'"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `import_runs` WHERE run_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "status"}).AddRow(7, "run-1", ImportRunStatusFailed))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `import_runs` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	run, err := BeginImportRun(context.Background(), db, "run-1", "lines.xlsx", "Project PO", true)
	require.NoError(t, err)
	assert.Equal(t, uint(7), run.ID)
	assert.Equal(t, ImportRunStatusRunning, run.Status)
	assert.True(t, run.DryRun)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginImportRun_CompletedRun(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `import_runs`")).
		WillReturnError(&mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'run-1'"})
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `import_runs` WHERE run_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "status"}).AddRow(7, "run-1", ImportRunStatusSuccess))

	run, err := BeginImportRun(context.Background(), db, "run-1", "lines.xlsx", "Project PO", false)
	assert.ErrorIs(t, err, ErrImportRunCompleted)
	assert.Equal(t, uint(7), run.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBeginImportRun_OtherInsertError(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `import_runs`")).WillReturnError(boom)

	_, err := BeginImportRun(context.Background(), db, "run-1", "lines.xlsx", "Project PO", false)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRowError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `import_row_errors`")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := RecordRowError(context.Background(), db, &ImportRowError{
		RunId:     "run-1",
		RowNumber: 4,
		ErrorCode: ImportErrorUnknownField,
		Message:   `unknown field "Colour"`,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishImportRun(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE `import_runs` SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	started := time.Now().Add(-time.Second)
	run := &ImportRun{ID: 3, RunId: "run-3", Status: ImportRunStatusRunning, StartedAt: &started}
	err := FinishImportRun(context.Background(), db, run, ImportStats{Rows: 4, Created: 1, Updated: 2, Failed: 1})
	require.NoError(t, err)
	assert.Equal(t, ImportRunStatusPartial, run.Status)
	assert.Equal(t, 1, run.ErrorCount)
	assert.GreaterOrEqual(t, run.DurationMs, int64(1000))
	assert.JSONEq(t, `{"rows":4,"created":1,"updated":2,"planned":0,"failed":1}`, string(run.StatsJSON))
	assert.NoError(t, mock.ExpectationsWereMet())
}
