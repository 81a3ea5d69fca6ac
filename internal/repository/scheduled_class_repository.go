package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/uni-timetable-api/internal/models"
)

const uniqueViolationCode = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var scheduledClassColumns = []string{
	"id", "academic_year_id", "program_id", "semester", "section", "day_index", "slot_index",
	"class_type", "subject_id", "teacher_ids", "room_id", "recurrence", "span_id", "span_master",
	"span_position", "span_total", "elective_group_id", "target_sections", "is_active",
	"created_at", "updated_at",
}

// ScheduledClassRepository persists scheduled classes and answers commitment queries.
type ScheduledClassRepository struct {
	db *sqlx.DB
}

// NewScheduledClassRepository creates a new scheduled class repository.
func NewScheduledClassRepository(db *sqlx.DB) *ScheduledClassRepository {
	return &ScheduledClassRepository{db: db}
}

// Query returns the commitments matching filter ordered by day, slot and id.
func (r *ScheduledClassRepository) Query(ctx context.Context, filter models.CommitmentFilter) ([]models.ScheduledClass, error) {
	query, args, err := applyCommitmentFilter(psql.Select(scheduledClassColumns...).From("scheduled_classes"), filter).
		OrderBy("day_index ASC", "slot_index ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build commitment query: %w", err)
	}

	var classes []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("query commitments: %w", err)
	}
	return classes, nil
}

// List returns one page of commitments with the total match count.
func (r *ScheduledClassRepository) List(ctx context.Context, filter models.CommitmentFilter, page, pageSize int) ([]models.ScheduledClass, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query, args, err := applyCommitmentFilter(psql.Select(scheduledClassColumns...).From("scheduled_classes"), filter).
		OrderBy("day_index ASC", "slot_index ASC", "id ASC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list scheduled classes: %w", err)
	}
	var classes []models.ScheduledClass
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scheduled classes: %w", err)
	}

	countQuery, countArgs, err := applyCommitmentFilter(psql.Select("COUNT(*)").From("scheduled_classes"), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count scheduled classes: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count scheduled classes: %w", err)
	}

	return classes, total, nil
}

// FindByID loads a scheduled class regardless of its active flag.
func (r *ScheduledClassRepository) FindByID(ctx context.Context, id string) (*models.ScheduledClass, error) {
	query, args, err := psql.Select(scheduledClassColumns...).
		From("scheduled_classes").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find scheduled class: %w", err)
	}
	var class models.ScheduledClass
	if err := r.db.GetContext(ctx, &class, query, args...); err != nil {
		return nil, err
	}
	return &class, nil
}

// Create inserts the class and its teacher reservations in one transaction.
func (r *ScheduledClassRepository) Create(ctx context.Context, class *models.ScheduledClass) (err error) {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	class.IsActive = true
	class.Recurrence = class.Recurrence.Normalize()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create scheduled class: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := psql.Insert("scheduled_classes").
		Columns(insertColumns()...).
		Values(
			class.ID, class.AcademicYearID, class.ProgramID, class.Semester, class.Section,
			class.DayIndex, class.SlotIndex, class.ClassType, class.SubjectID, class.TeacherIDs,
			class.RoomID, class.Recurrence, class.SpanID, class.SpanMaster, class.SpanPosition,
			class.SpanTotal, class.ElectiveGroupID, targetSections(class), class.IsActive,
			class.CreatedAt, class.UpdatedAt, class.SemesterParity(), class.Recurrence.Key(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create scheduled class: %w", err)
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("create scheduled class", err)
	}
	if err = insertTeacherReservations(ctx, tx, class); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return translateWriteError("commit create scheduled class", err)
	}
	return nil
}

// Update rewrites the class and replaces its teacher reservations.
func (r *ScheduledClassRepository) Update(ctx context.Context, class *models.ScheduledClass) (err error) {
	class.UpdatedAt = time.Now().UTC()
	class.Recurrence = class.Recurrence.Normalize()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update scheduled class: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query, args, err := psql.Update("scheduled_classes").
		SetMap(map[string]interface{}{
			"program_id":        class.ProgramID,
			"semester":          class.Semester,
			"semester_parity":   class.SemesterParity(),
			"section":           class.Section,
			"day_index":         class.DayIndex,
			"slot_index":        class.SlotIndex,
			"class_type":        class.ClassType,
			"subject_id":        class.SubjectID,
			"teacher_ids":       class.TeacherIDs,
			"room_id":           class.RoomID,
			"recurrence":        class.Recurrence,
			"recurrence_key":    class.Recurrence.Key(),
			"elective_group_id": class.ElectiveGroupID,
			"target_sections":   targetSections(class),
			"updated_at":        class.UpdatedAt,
		}).
		Where(sq.Eq{"id": class.ID, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update scheduled class: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return translateWriteError("update scheduled class", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scheduled class rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM scheduled_class_teachers WHERE scheduled_class_id = $1`, class.ID); err != nil {
		return fmt.Errorf("clear teacher reservations: %w", err)
	}
	if err = insertTeacherReservations(ctx, tx, class); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return translateWriteError("commit update scheduled class", err)
	}
	return nil
}

// Deactivate soft-cancels a single active class and releases its teacher reservations.
func (r *ScheduledClassRepository) Deactivate(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deactivate scheduled class: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `UPDATE scheduled_classes SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND is_active`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate scheduled class: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate scheduled class rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	if _, err = tx.ExecContext(ctx, `UPDATE scheduled_class_teachers SET is_active = FALSE WHERE scheduled_class_id = $1`, id); err != nil {
		return fmt.Errorf("release teacher reservations: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit deactivate scheduled class: %w", err)
	}
	return nil
}

// DeactivateSpan soft-cancels every active member of a span and returns their ids.
func (r *ScheduledClassRepository) DeactivateSpan(ctx context.Context, spanID string) (ids []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deactivate span: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = tx.SelectContext(ctx, &ids, `UPDATE scheduled_classes SET is_active = FALSE, updated_at = $2 WHERE span_id = $1 AND is_active RETURNING id`, spanID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("deactivate span: %w", err)
	}
	if len(ids) == 0 {
		return nil, sql.ErrNoRows
	}
	if _, err = tx.ExecContext(ctx, `UPDATE scheduled_class_teachers SET is_active = FALSE WHERE scheduled_class_id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("release span teacher reservations: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deactivate span: %w", err)
	}
	return ids, nil
}

// Delete hard-deletes a class. Only span rollback compensation uses it; deleting a missing row is not an error.
func (r *ScheduledClassRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete scheduled class: %w", err)
	}
	return nil
}

func applyCommitmentFilter(builder sq.SelectBuilder, filter models.CommitmentFilter) sq.SelectBuilder {
	if filter.AcademicYearID != "" {
		builder = builder.Where(sq.Eq{"academic_year_id": filter.AcademicYearID})
	}
	if !filter.IncludeInactive {
		builder = builder.Where(sq.Eq{"is_active": true})
	}
	if filter.TeacherID != "" {
		builder = builder.Where(sq.Expr("? = ANY(teacher_ids)", filter.TeacherID))
	}
	if filter.RoomID != "" {
		builder = builder.Where(sq.Eq{"room_id": filter.RoomID})
	}
	if filter.ProgramID != "" {
		builder = builder.Where(sq.Eq{"program_id": filter.ProgramID})
	}
	if filter.Semester != nil {
		builder = builder.Where(sq.Eq{"semester": *filter.Semester})
	}
	if filter.Section != "" {
		builder = builder.Where(sq.Or{
			sq.Eq{"section": filter.Section},
			sq.Expr("? = ANY(target_sections)", filter.Section),
		})
	}
	if filter.DayIndex != nil {
		builder = builder.Where(sq.Eq{"day_index": *filter.DayIndex})
	}
	if filter.SlotIndex != nil {
		builder = builder.Where(sq.Eq{"slot_index": *filter.SlotIndex})
	}
	if filter.SpanID != "" {
		builder = builder.Where(sq.Eq{"span_id": filter.SpanID})
	}
	if filter.CoreOnly {
		builder = builder.Where(sq.Eq{"elective_group_id": nil})
	}
	if filter.ElectiveOnly {
		builder = builder.Where(sq.NotEq{"elective_group_id": nil})
	}
	if filter.ExcludeElectiveGroupID != "" {
		builder = builder.Where(sq.Or{
			sq.Eq{"elective_group_id": nil},
			sq.NotEq{"elective_group_id": filter.ExcludeElectiveGroupID},
		})
	}
	return builder
}

func insertTeacherReservations(ctx context.Context, tx *sqlx.Tx, class *models.ScheduledClass) error {
	if len(class.TeacherIDs) == 0 {
		return nil
	}

	builder := psql.Insert("scheduled_class_teachers").
		Columns("scheduled_class_id", "teacher_id", "academic_year_id", "day_index", "slot_index", "recurrence_key", "semester_parity", "is_active")
	for _, teacherID := range lo.Uniq([]string(class.TeacherIDs)) {
		builder = builder.Values(class.ID, teacherID, class.AcademicYearID, class.DayIndex, class.SlotIndex, class.Recurrence.Key(), class.SemesterParity(), true)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build teacher reservations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return translateWriteError("insert teacher reservations", err)
	}
	return nil
}

func insertColumns() []string {
	columns := make([]string, 0, len(scheduledClassColumns)+2)
	columns = append(columns, scheduledClassColumns...)
	return append(columns, "semester_parity", "recurrence_key")
}

func targetSections(class *models.ScheduledClass) pq.StringArray {
	if class.TargetSections == nil {
		return pq.StringArray{}
	}
	return class.TargetSections
}

func translateWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
		return &models.UniquenessViolationError{Constraint: pqErr.Constraint, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
