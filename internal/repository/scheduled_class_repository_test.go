package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

func newScheduledClassRepoMock(t *testing.T) (*ScheduledClassRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewScheduledClassRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func scheduledClassRows() *sqlmock.Rows {
	return sqlmock.NewRows(scheduledClassColumns)
}

func addScheduledClassRow(rows *sqlmock.Rows, id string, day, slot int, recurrence string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "ay-1", "cs", 3, "A", day, slot, "lecture", "math", "{t1}", "r1",
		recurrence, nil, false, 0, 0, nil, "{}", true, now, now)
}

func TestScheduledClassRepositoryQueryTeacherAtCell(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	rows := addScheduledClassRow(scheduledClassRows(), "c1", 0, 2, `{"type":"alternate","pattern":"odd"}`)
	mock.ExpectQuery(regexp.QuoteMeta("FROM scheduled_classes WHERE academic_year_id = $1 AND is_active = $2 AND $3 = ANY(teacher_ids) AND day_index = $4 AND slot_index = $5 ORDER BY day_index ASC, slot_index ASC, id ASC")).
		WithArgs("ay-1", true, "t1", 0, 2).
		WillReturnRows(rows)

	filter := models.CommitmentFilter{AcademicYearID: "ay-1", TeacherID: "t1"}.AtCell(0, 2)
	classes, err := repo.Query(context.Background(), filter)
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "c1", classes[0].ID)
	assert.Equal(t, pq.StringArray{"t1"}, classes[0].TeacherIDs)
	assert.Equal(t, models.RecurrencePattern{Type: models.RecurrenceAlternate, Pattern: models.WeekOdd}, classes[0].Recurrence)
	assert.Nil(t, classes[0].SpanID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryQuerySectionOccupancy(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	semester := 3
	mock.ExpectQuery(regexp.QuoteMeta("WHERE academic_year_id = $1 AND is_active = $2 AND program_id = $3 AND semester = $4 AND (section = $5 OR $6 = ANY(target_sections)) AND day_index = $7 AND slot_index = $8 AND elective_group_id IS NULL")).
		WithArgs("ay-1", true, "cs", 3, "A", "A", 1, 4).
		WillReturnRows(scheduledClassRows())

	filter := models.CommitmentFilter{
		AcademicYearID: "ay-1",
		ProgramID:      "cs",
		Semester:       &semester,
		Section:        "A",
		CoreOnly:       true,
	}.AtCell(1, 4)
	classes, err := repo.Query(context.Background(), filter)
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryQueryExcludesElectiveGroup(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("elective_group_id IS NOT NULL AND (elective_group_id IS NULL OR elective_group_id <> $3)")).
		WithArgs("ay-1", true, "eg-1").
		WillReturnRows(scheduledClassRows())

	_, err := repo.Query(context.Background(), models.CommitmentFilter{
		AcademicYearID:         "ay-1",
		ElectiveOnly:           true,
		ExcludeElectiveGroupID: "eg-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryList(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	rows := addScheduledClassRow(scheduledClassRows(), "c1", 0, 0, `{"type":"weekly"}`)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE academic_year_id = $1 AND is_active = $2 ORDER BY day_index ASC, slot_index ASC, id ASC LIMIT 20 OFFSET 0")).
		WithArgs("ay-1", true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM scheduled_classes WHERE academic_year_id = $1 AND is_active = $2")).
		WithArgs("ay-1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	classes, total, err := repo.List(context.Background(), models.CommitmentFilter{AcademicYearID: "ay-1"}, 0, 0)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryCreateReservesTeachers(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduled_classes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_class_teachers").
		WithArgs(
			sqlmock.AnyArg(), "t1", "ay-1", 2, 3, "alternate:even", 1, true,
			sqlmock.AnyArg(), "t2", "ay-1", 2, 3, "alternate:even", 1, true,
		).
		WillReturnResult(sqlmock.NewResult(2, 2))
	mock.ExpectCommit()

	class := &models.ScheduledClass{
		AcademicYearID: "ay-1",
		ProgramID:      "cs",
		Semester:       5,
		Section:        "A",
		DayIndex:       2,
		SlotIndex:      3,
		ClassType:      models.ClassTypeLecture,
		TeacherIDs:     pq.StringArray{"t1", "t2", "t1"},
		RoomID:         "r1",
		Recurrence:     models.RecurrencePattern{Type: models.RecurrenceAlternate, Pattern: "EVEN"},
	}
	require.NoError(t, repo.Create(context.Background(), class))
	assert.NotEmpty(t, class.ID)
	assert.True(t, class.IsActive)
	assert.Equal(t, models.WeekEven, class.Recurrence.Pattern)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryCreateBreakSkipsReservations(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduled_classes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	class := &models.ScheduledClass{ID: "b1", AcademicYearID: "ay-1", Semester: 1, Section: "A", ClassType: models.ClassTypeBreak}
	require.NoError(t, repo.Create(context.Background(), class))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryCreateTranslatesUniqueViolation(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduled_classes").
		WillReturnError(&pq.Error{Code: "23505", Constraint: models.ConstraintRoomCell})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.ScheduledClass{ID: "c1", AcademicYearID: "ay-1", Semester: 1, RoomID: "r1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrUniquenessViolation))
	var violation *models.UniquenessViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, models.ConstraintRoomCell, violation.Constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryCreateTeacherReservationViolation(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scheduled_classes").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO scheduled_class_teachers").
		WillReturnError(&pq.Error{Code: "23505", Constraint: models.ConstraintTeacherCell})
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.ScheduledClass{ID: "c1", AcademicYearID: "ay-1", Semester: 1, TeacherIDs: pq.StringArray{"t1"}})
	var violation *models.UniquenessViolationError
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, models.ConstraintTeacherCell, violation.Constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryUpdateMissing(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_classes SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.ScheduledClass{ID: "missing", Semester: 1})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryUpdateReplacesReservations(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_classes SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scheduled_class_teachers WHERE scheduled_class_id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO scheduled_class_teachers").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), &models.ScheduledClass{ID: "c1", AcademicYearID: "ay-1", Semester: 2, TeacherIDs: pq.StringArray{"t9"}})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryDeactivate(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_classes SET is_active = FALSE").
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE scheduled_class_teachers SET is_active = FALSE").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Deactivate(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryDeactivateMissing(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE scheduled_classes SET is_active = FALSE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assert.ErrorIs(t, repo.Deactivate(context.Background(), "gone"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryDeactivateSpan(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE scheduled_classes SET is_active = FALSE.*RETURNING id").
		WithArgs("span-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1").AddRow("m2"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE scheduled_class_teachers SET is_active = FALSE WHERE scheduled_class_id = ANY($1)")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	ids, err := repo.DeactivateSpan(context.Background(), "span-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduledClassRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newScheduledClassRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scheduled_classes WHERE id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), "c1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
