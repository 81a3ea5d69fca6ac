package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

func newTestElectiveValidator(store *memoryStore, teachers ...models.Teacher) *ElectiveValidator {
	return NewElectiveValidator(newTestConflictValidator(store, teachers...), nil)
}

func electiveClass(id, groupID string, day, slot int, sections ...string) models.ScheduledClass {
	c := newClass(id, 3, "", day, slot, "t1")
	c.ElectiveGroupID = stringPtr(groupID)
	c.TargetSections = pq.StringArray(sections)
	return c
}

func TestElectiveValidatorCleanBroadcast(t *testing.T) {
	validator := newTestElectiveValidator(newMemoryStore(), newTeacher("t1", nil, ""))

	report, err := validator.ValidateElective(context.Background(), testYear, electiveClass("", "eg-1", 1, 2, "A", "B", "C"))
	require.NoError(t, err)
	assert.False(t, report.HasConflicts)
	assert.Empty(t, report.Conflicts)
}

func TestElectiveValidatorCoreClassBlocksWholeBroadcast(t *testing.T) {
	core := newClass("sc-core", 3, "B", 1, 2, "t7")
	validator := newTestElectiveValidator(newMemoryStore(core), newTeacher("t1", nil, ""))

	report, err := validator.ValidateElective(context.Background(), testYear, electiveClass("", "eg-1", 1, 2, "A", "B", "C"))
	require.NoError(t, err)
	require.True(t, report.HasConflicts)
	require.Equal(t, []models.ConflictType{models.ConflictElectiveCore}, conflictTypes(report))

	detail := report.Conflicts[0].Detail.(models.ElectiveCoreDetail)
	assert.Equal(t, "B", detail.Section)
	assert.Equal(t, "eg-1", detail.ElectiveGroupID)
	assert.Equal(t, "sc-core", report.Conflicts[0].ExistingCommitmentID)
	assert.Contains(t, report.Conflicts[0].Message, "Section B already has core class")
}

func TestElectiveValidatorOtherGroupOverlap(t *testing.T) {
	other := electiveClass("sc-eg2", "eg-2", 1, 2, "C", "D")
	other.TeacherIDs = pq.StringArray{"t8"}
	sibling := electiveClass("sc-eg1", "eg-1", 1, 2, "A")
	sibling.TeacherIDs = pq.StringArray{"t9"}
	validator := newTestElectiveValidator(newMemoryStore(other, sibling), newTeacher("t1", nil, ""))

	report, err := validator.ValidateElective(context.Background(), testYear, electiveClass("", "eg-1", 1, 2, "A", "B", "C"))
	require.NoError(t, err)
	require.Equal(t, []models.ConflictType{models.ConflictElectiveOverlap}, conflictTypes(report))

	detail := report.Conflicts[0].Detail.(models.ElectiveOverlapDetail)
	assert.Equal(t, "C", detail.Section)
	assert.Equal(t, "eg-2", detail.ExistingElectiveGroupID)
}

func TestElectiveValidatorRespectsRecurrence(t *testing.T) {
	core := newClass("sc-core", 3, "A", 1, 2, "t7")
	core.Recurrence = alternate(models.WeekOdd)
	validator := newTestElectiveValidator(newMemoryStore(core), newTeacher("t1", nil, ""))

	proposed := electiveClass("", "eg-1", 1, 2, "A", "B")
	proposed.Recurrence = alternate(models.WeekEven)
	report, err := validator.ValidateElective(context.Background(), testYear, proposed)
	require.NoError(t, err)
	assert.False(t, report.HasConflicts)
}

func TestElectiveValidatorIncludesTeacherAndRoomChecks(t *testing.T) {
	busy := newClass("sc-busy", 5, "Z", 1, 2, "t1")
	busy.ProgramID = "math"
	busy.RoomID = "r-101"
	validator := newTestElectiveValidator(newMemoryStore(busy), newTeacher("t1", nil, ""))

	proposed := electiveClass("", "eg-1", 1, 2, "A", "B")
	proposed.RoomID = "r-101"
	report, err := validator.ValidateElective(context.Background(), testYear, proposed)
	require.NoError(t, err)
	assert.Equal(t, []models.ConflictType{models.ConflictTeacherSchedule, models.ConflictRoom}, conflictTypes(report))
}

func TestElectiveValidatorRejectsNonBroadcast(t *testing.T) {
	validator := newTestElectiveValidator(newMemoryStore(), newTeacher("t1", nil, ""))

	_, err := validator.ValidateElective(context.Background(), testYear, newClass("", 3, "A", 1, 2, "t1"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	noTargets := electiveClass("", "eg-1", 1, 2)
	noTargets.Section = "A"
	_, err = validator.ValidateElective(context.Background(), testYear, noTargets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target section")
}
