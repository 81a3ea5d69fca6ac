package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/pkg/jobs"
)

const testYear = "ay-2025"

type fakeTeachers struct {
	items map[string]models.Teacher
	err   error
}

func newFakeTeachers(teachers ...models.Teacher) *fakeTeachers {
	return &fakeTeachers{items: lo.KeyBy(teachers, func(t models.Teacher) string { return t.ID })}
}

func (f *fakeTeachers) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if f.err != nil {
		return nil, f.err
	}
	teacher, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &teacher, nil
}

func (f *fakeTeachers) FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error) {
	if f.err != nil {
		return nil, f.err
	}
	return lo.FilterMap(ids, func(id string, _ int) (models.Teacher, bool) {
		teacher, ok := f.items[id]
		return teacher, ok
	}), nil
}

type fakeRooms struct {
	items map[string]models.Room
}

func newFakeRooms(rooms ...models.Room) *fakeRooms {
	return &fakeRooms{items: lo.KeyBy(rooms, func(r models.Room) string { return r.ID })}
}

func (f *fakeRooms) FindByID(ctx context.Context, id string) (*models.Room, error) {
	room, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &room, nil
}

// memoryStore is a concurrency safe in-memory commitment store.
type memoryStore struct {
	mu        sync.Mutex
	classes   map[string]models.ScheduledClass
	seq       int
	queries   int
	queryErr  error
	createErr func(class models.ScheduledClass) error
	deleteErr map[string]error
	created   []string
	deleted   []string
}

func newMemoryStore(classes ...models.ScheduledClass) *memoryStore {
	store := &memoryStore{classes: make(map[string]models.ScheduledClass), deleteErr: make(map[string]error)}
	for _, class := range classes {
		store.classes[class.ID] = class
	}
	return store
}

func (m *memoryStore) Query(ctx context.Context, filter models.CommitmentFilter) ([]models.ScheduledClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	found := lo.Filter(lo.Values(m.classes), func(class models.ScheduledClass, _ int) bool {
		return filter.Matches(class)
	})
	sort.Slice(found, func(i, j int) bool {
		if found[i].DayIndex != found[j].DayIndex {
			return found[i].DayIndex < found[j].DayIndex
		}
		if found[i].SlotIndex != found[j].SlotIndex {
			return found[i].SlotIndex < found[j].SlotIndex
		}
		return found[i].ID < found[j].ID
	})
	return found, nil
}

func (m *memoryStore) List(ctx context.Context, filter models.CommitmentFilter, page, pageSize int) ([]models.ScheduledClass, int, error) {
	all, err := m.Query(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	start := lo.Min([]int{(page - 1) * pageSize, len(all)})
	end := lo.Min([]int{start + pageSize, len(all)})
	return all[start:end], len(all), nil
}

func (m *memoryStore) FindByID(ctx context.Context, id string) (*models.ScheduledClass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (m *memoryStore) Create(ctx context.Context, class *models.ScheduledClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		if err := m.createErr(*class); err != nil {
			return err
		}
	}
	if class.ID == "" {
		m.seq++
		class.ID = fmt.Sprintf("sc-new-%d", m.seq)
	}
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	class.CreatedAt = now
	class.UpdatedAt = now
	class.IsActive = true
	m.classes[class.ID] = *class
	m.created = append(m.created, class.ID)
	return nil
}

func (m *memoryStore) Update(ctx context.Context, class *models.ScheduledClass) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.classes[class.ID]
	if !ok || !current.IsActive {
		return sql.ErrNoRows
	}
	class.IsActive = true
	m.classes[class.ID] = *class
	return nil
}

func (m *memoryStore) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	class, ok := m.classes[id]
	if !ok || !class.IsActive {
		return sql.ErrNoRows
	}
	class.IsActive = false
	m.classes[id] = class
	return nil
}

func (m *memoryStore) DeactivateSpan(ctx context.Context, spanID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, class := range m.classes {
		if class.IsActive && class.SpanID != nil && *class.SpanID == spanID {
			class.IsActive = false
			m.classes[id] = class
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	delete(m.classes, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memoryStore) activeIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := lo.FilterMap(lo.Values(m.classes), func(class models.ScheduledClass, _ int) (string, bool) {
		return class.ID, class.IsActive
	})
	sort.Strings(ids)
	return ids
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []SpanCleanupPayload
	err  error
}

func (d *recordingDispatcher) Enqueue(job jobs.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job.Payload.(SpanCleanupPayload))
	return nil
}

func (d *recordingDispatcher) enqueued() []SpanCleanupPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]SpanCleanupPayload(nil), d.jobs...)
}

func newTeacher(id string, days []int64, unavailable string) models.Teacher {
	t := models.Teacher{ID: id, FullName: "Ana " + id, AvailableDays: pq.Int64Array(days), Active: true}
	if unavailable != "" {
		t.UnavailableSlots = types.JSONText(unavailable)
	}
	return t
}

// newClass builds an active weekly lecture; mutate the result for variations.
func newClass(id string, semester int, section string, day, slot int, teacherIDs ...string) models.ScheduledClass {
	return models.ScheduledClass{
		ID:             id,
		AcademicYearID: testYear,
		ProgramID:      "cs",
		Semester:       semester,
		Section:        section,
		DayIndex:       day,
		SlotIndex:      slot,
		ClassType:      models.ClassTypeLecture,
		SubjectID:      "subj-" + id,
		TeacherIDs:     pq.StringArray(teacherIDs),
		Recurrence:     models.Weekly(),
		IsActive:       true,
	}
}

func alternate(parity models.WeekParity) models.RecurrencePattern {
	return models.RecurrencePattern{Type: models.RecurrenceAlternate, Pattern: parity}
}

func customWeeks(weeks ...int) models.RecurrencePattern {
	return models.RecurrencePattern{Type: models.RecurrenceCustom, Weeks: weeks}
}

func conflictTypes(report *models.ConflictReport) []models.ConflictType {
	return lo.Map(report.Conflicts, func(record models.ConflictRecord, _ int) models.ConflictType {
		return record.Type
	})
}
