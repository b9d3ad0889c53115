package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flashcoder237/oapet-schedule-backend-sub000/internal/models"
	appErrors "github.com/flashcoder237/oapet-schedule-backend-sub000/pkg/errors"
)

func newDBMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var occurrenceRowColumns = []string{
	"id", "template_id", "schedule_id", "course_id", "session_type", "date", "start_time", "end_time",
	"room_id", "instructor_id", "status", "room_modified", "instructor_modified", "time_modified",
	"cancelled", "cancellation_reason", "rescheduled_from", "notes", "created_at", "updated_at",
}

func occurrenceRow(id, scheduleID string, date time.Time) []driver.Value {
	now := time.Now().UTC()
	return []driver.Value{
		id, "tpl-1", scheduleID, "course-1", "CM", date, "08:00", "10:00",
		"room-1", "instructor-1", "SCHEDULED", false, false, false,
		false, nil, nil, nil, now, now,
	}
}

func TestOccurrenceFindByID(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)
	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM occurrences WHERE id = \$1`).
		WithArgs("occ-1").
		WillReturnRows(sqlmock.NewRows(occurrenceRowColumns).AddRow(occurrenceRow("occ-1", "sched-1", date)...))

	occurrence, err := repo.FindByID(context.Background(), "occ-1")
	require.NoError(t, err)
	assert.Equal(t, "occ-1", occurrence.ID)
	assert.Equal(t, models.SessionTypeCM, occurrence.SessionType)
	assert.Equal(t, models.OccurrenceStatusScheduled, occurrence.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceFindByIDNotFound(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM occurrences WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestOccurrenceListInWindow(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	mock.ExpectQuery(`SELECT (.+) FROM occurrences WHERE date BETWEEN \$1 AND \$2 ORDER BY date ASC, start_time ASC`).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows(occurrenceRowColumns).
			AddRow(occurrenceRow("occ-1", "sched-1", from)...).
			AddRow(occurrenceRow("occ-2", "sched-2", from.AddDate(0, 0, 1))...))

	occurrences, err := repo.ListInWindow(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, occurrences, 2)
	assert.Equal(t, "sched-2", occurrences[1].ScheduleID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceCreateStampsDefaults(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)

	mock.ExpectExec(`INSERT INTO occurrences`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	occurrence := models.Occurrence{
		ID:         "occ-1",
		TemplateID: "tpl-1",
		ScheduleID: "sched-1",
		CourseID:   "course-1",
		Date:       time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
		StartTime:  "08:00",
		EndTime:    "10:00",
	}
	require.NoError(t, repo.Create(context.Background(), &occurrence))

	assert.Equal(t, models.OccurrenceStatusScheduled, occurrence.Status)
	assert.False(t, occurrence.CreatedAt.IsZero())
	assert.False(t, occurrence.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOccurrenceCreateMapsUniqueViolation(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)

	mock.ExpectExec(`INSERT INTO occurrences`).
		WillReturnError(&pq.Error{Code: pq.ErrorCode(uniqueViolationCode)})

	err := repo.Create(context.Background(), &models.Occurrence{ID: "occ-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBulkCreateWithTxRollsIntoCallerTransaction(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO occurrences`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO occurrences`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	batch := []models.Occurrence{
		{ID: "occ-1", ScheduleID: "sched-1"},
		{ID: "occ-2", ScheduleID: "sched-1"},
	}
	require.NoError(t, repo.BulkCreateWithTx(context.Background(), tx, batch))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInWindowPreservesHumanEdits(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 28)

	mock.ExpectExec(`DELETE FROM occurrences WHERE schedule_id = \$1 AND date BETWEEN \$2 AND \$3 AND room_modified = FALSE AND instructor_modified = FALSE AND time_modified = FALSE AND cancelled = FALSE`).
		WithArgs("sched-1", from, to).
		WillReturnResult(sqlmock.NewResult(0, 7))

	deleted, err := repo.DeleteInWindow(context.Background(), nil, "sched-1", from, to, true)
	require.NoError(t, err)
	assert.Equal(t, 7, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteInWindowFullClear(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)
	from := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 28)

	mock.ExpectExec(`DELETE FROM occurrences WHERE schedule_id = \$1 AND date BETWEEN \$2 AND \$3$`).
		WithArgs("sched-1", from, to).
		WillReturnResult(sqlmock.NewResult(0, 12))

	deleted, err := repo.DeleteInWindow(context.Background(), nil, "sched-1", from, to, false)
	require.NoError(t, err)
	assert.Equal(t, 12, deleted)
}

func TestOccurrenceUpdateRefreshesTimestamp(t *testing.T) {
	db, mock := newDBMock(t)
	repo := NewOccurrenceRepository(db)

	mock.ExpectExec(`UPDATE occurrences`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	occurrence := models.Occurrence{ID: "occ-1", Status: models.OccurrenceStatusCancelled}
	before := occurrence.UpdatedAt
	require.NoError(t, repo.Update(context.Background(), &occurrence))
	assert.True(t, occurrence.UpdatedAt.After(before))
	assert.NoError(t, mock.ExpectationsWereMet())
}
