package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	appErrors "github.com/noah-isme/uni-timetable-api/pkg/errors"
)

type teacherBatchDirectory interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Teacher, error)
}

// AvailabilityConfig describes the weekly grid searched for free slots.
type AvailabilityConfig struct {
	WorkingDays []int
	SlotsPerDay int
}

// AvailabilityService computes the slots where a whole group of teachers is free.
type AvailabilityService struct {
	teachers teacherBatchDirectory
	store    commitmentStore
	cache    *AvailabilityCache
	cfg      AvailabilityConfig
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAvailabilityService constructs an AvailabilityService. cache may be nil.
func NewAvailabilityService(teachers teacherBatchDirectory, store commitmentStore, cache *AvailabilityCache, cfg AvailabilityConfig, metrics *MetricsService, logger *zap.Logger) *AvailabilityService {
	if len(cfg.WorkingDays) == 0 {
		cfg.WorkingDays = []int{0, 1, 2, 3, 4, 5}
	}
	if cfg.SlotsPerDay <= 0 {
		cfg.SlotsPerDay = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{teachers: teachers, store: store, cache: cache, cfg: cfg, metrics: metrics, logger: logger}
}

type busyEntries map[models.GridCell][]models.BusyTeacher

// FindCommonFreeSlots returns the runs of cells in which every listed teacher is free.
// Any active commitment makes a teacher busy regardless of its recurrence.
func (s *AvailabilityService) FindCommonFreeSlots(ctx context.Context, academicYearID string, teacherIDs []string, constraints models.AvailabilityConstraints) (*models.AvailabilityReport, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveAvailability(time.Since(start)) }()

	teacherIDs = lo.Uniq(lo.Filter(teacherIDs, func(id string, _ int) bool { return strings.TrimSpace(id) != "" }))
	constraints, err := normalizeConstraints(academicYearID, teacherIDs, constraints)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cache.Key(academicYearID, teacherIDs, constraints)
	generation := s.cache.Generation(academicYearID)
	var cached models.AvailabilityReport
	if s.cache.Get(ctx, cacheKey, &cached) {
		cached.Cached = true
		return &cached, nil
	}

	teachers, err := s.loadTeachers(ctx, teacherIDs)
	if err != nil {
		return nil, err
	}
	commitments, err := s.loadCommitments(ctx, academicYearID, teacherIDs)
	if err != nil {
		return nil, err
	}

	days := lo.Filter(s.cfg.WorkingDays, func(day int, _ int) bool {
		return !lo.Contains(constraints.ExcludeDays, day)
	})
	perTeacher := make(map[string]busyEntries, len(teacherIDs))
	for _, teacherID := range teacherIDs {
		busy, err := s.busyCells(teachers[teacherID], commitments[teacherID], days)
		if err != nil {
			return nil, err
		}
		perTeacher[teacherID] = busy
	}

	report := buildAvailabilityReport(academicYearID, teacherIDs, constraints, days, s.cfg.SlotsPerDay, perTeacher)
	s.cache.Put(ctx, cacheKey, academicYearID, generation, report)
	s.logger.Debug("common free slots computed",
		zap.String("academic_year_id", academicYearID),
		zap.Strings("teacher_ids", teacherIDs),
		zap.Int("free_cells", report.Statistics.FreeCells),
		zap.Int("recommended_runs", report.Statistics.RecommendedRuns),
	)
	return report, nil
}

func (s *AvailabilityService) loadTeachers(ctx context.Context, teacherIDs []string) (map[string]models.Teacher, error) {
	found, err := s.teachers.FindByIDs(ctx, teacherIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	byID := lo.KeyBy(found, func(teacher models.Teacher) string { return teacher.ID })
	for _, teacherID := range teacherIDs {
		if _, ok := byID[teacherID]; !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", teacherID))
		}
	}
	return byID, nil
}

func (s *AvailabilityService) loadCommitments(ctx context.Context, academicYearID string, teacherIDs []string) (map[string][]models.ScheduledClass, error) {
	results := make([][]models.ScheduledClass, len(teacherIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, teacherID := range teacherIDs {
		i, teacherID := i, teacherID
		g.Go(func() error {
			classes, err := s.store.Query(gctx, models.CommitmentFilter{AcademicYearID: academicYearID, TeacherID: teacherID})
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to query teacher commitments")
			}
			results[i] = classes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("availability commitment load failed", zap.String("academic_year_id", academicYearID), zap.Error(err))
		return nil, err
	}

	byTeacher := make(map[string][]models.ScheduledClass, len(teacherIDs))
	for i, teacherID := range teacherIDs {
		byTeacher[teacherID] = results[i]
	}
	return byTeacher, nil
}

// busyCells lists every reason a teacher cannot take each cell of the searched grid.
func (s *AvailabilityService) busyCells(teacher models.Teacher, commitments []models.ScheduledClass, days []int) (busyEntries, error) {
	busy := make(busyEntries)
	unavailable, err := teacher.Unavailable()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read teacher availability")
	}
	name := displayName(teacher.FullName, teacher.ID)

	for _, day := range days {
		if teacher.AvailableOn(day) {
			continue
		}
		for slot := 0; slot < s.cfg.SlotsPerDay; slot++ {
			cell := models.GridCell{Day: day, Slot: slot}
			busy[cell] = append(busy[cell], models.BusyTeacher{
				TeacherID: teacher.ID,
				Reason:    models.BusyUnavailableDay,
				Message:   fmt.Sprintf("%s does not work on %s", name, models.DayName(day)),
			})
		}
	}

	for _, entry := range unavailable {
		cell := models.GridCell{Day: entry.Day, Slot: entry.Slot}
		if !s.inGrid(cell, days) {
			continue
		}
		message := fmt.Sprintf("%s is unavailable on %s slot %d", name, models.DayName(entry.Day), entry.Slot)
		if entry.Reason != "" {
			message += ": " + entry.Reason
		}
		busy[cell] = append(busy[cell], models.BusyTeacher{
			TeacherID: teacher.ID,
			Reason:    models.BusyUnavailableSlot,
			Message:   message,
		})
	}

	for _, class := range commitments {
		cell := class.Cell()
		if !s.inGrid(cell, days) {
			continue
		}
		busy[cell] = append(busy[cell], models.BusyTeacher{
			TeacherID:  teacher.ID,
			Reason:     models.BusyScheduledClass,
			Message:    fmt.Sprintf("%s teaches %s for %s semester %d section %s (%s)", name, class.SubjectID, class.ProgramID, class.Semester, class.Section, class.Recurrence),
			Commitment: models.RefFor(class),
		})
	}
	return busy, nil
}

func (s *AvailabilityService) inGrid(cell models.GridCell, days []int) bool {
	return cell.Slot >= 0 && cell.Slot < s.cfg.SlotsPerDay && lo.Contains(days, cell.Day)
}

func buildAvailabilityReport(academicYearID string, teacherIDs []string, constraints models.AvailabilityConstraints, days []int, slotsPerDay int, perTeacher map[string]busyEntries) *models.AvailabilityReport {
	report := &models.AvailabilityReport{
		AcademicYearID:  academicYearID,
		TeacherIDs:      teacherIDs,
		Constraints:     constraints,
		CommonFreeSlots: []models.FreeSlotRun{},
		BusySlots:       []models.BusySlot{},
		Cells:           make([]models.AvailabilityCell, 0, len(days)*slotsPerDay),
		Statistics: models.AvailabilityStatistics{
			TeachersRequested:   len(teacherIDs),
			DaysEvaluated:       len(days),
			BusyCellsPerTeacher: make(map[string]int, len(teacherIDs)),
		},
	}
	for _, teacherID := range teacherIDs {
		report.Statistics.BusyCellsPerTeacher[teacherID] = len(perTeacher[teacherID])
	}

	for _, day := range days {
		runStart, runLength := -1, 0
		closeRun := func() {
			if runLength == 0 {
				return
			}
			report.Statistics.FreeRuns++
			if runLength >= constraints.MinDuration {
				report.CommonFreeSlots = append(report.CommonFreeSlots, models.FreeSlotRun{Day: day, Slot: runStart, Duration: runLength})
				report.Statistics.RecommendedRuns++
			} else {
				report.Statistics.DroppedRuns++
			}
			runStart, runLength = -1, 0
		}

		for slot := 0; slot < slotsPerDay; slot++ {
			cell := models.GridCell{Day: day, Slot: slot}
			var reasons []models.BusyTeacher
			busyIDs := []string{}
			for _, teacherID := range teacherIDs {
				entries := perTeacher[teacherID][cell]
				if len(entries) == 0 {
					continue
				}
				reasons = append(reasons, entries...)
				busyIDs = append(busyIDs, teacherID)
			}

			report.Statistics.CellsEvaluated++
			free := len(busyIDs) == 0
			report.Cells = append(report.Cells, models.AvailabilityCell{Day: day, Slot: slot, Free: free, BusyTeacherIDs: busyIDs})
			if free {
				report.Statistics.FreeCells++
				if runLength == 0 {
					runStart = slot
				}
				runLength++
				continue
			}

			report.Statistics.BusyCells++
			report.BusySlots = append(report.BusySlots, models.BusySlot{Day: day, Slot: slot, BusyTeachers: reasons})
			closeRun()
		}
		closeRun()
	}
	return report
}

func normalizeConstraints(academicYearID string, teacherIDs []string, constraints models.AvailabilityConstraints) (models.AvailabilityConstraints, error) {
	if strings.TrimSpace(academicYearID) == "" {
		return constraints, appErrors.Clone(appErrors.ErrValidation, "academic year is required")
	}
	if len(teacherIDs) == 0 {
		return constraints, appErrors.Clone(appErrors.ErrValidation, "at least one teacher is required")
	}
	if constraints.MinDuration < 0 {
		return constraints, appErrors.Clone(appErrors.ErrValidation, "minimum duration must not be negative")
	}
	if constraints.MinDuration == 0 {
		constraints.MinDuration = 1
	}
	for _, day := range constraints.ExcludeDays {
		if !models.ValidDay(day) {
			return constraints, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("excluded day %d outside 0-6", day))
		}
	}
	excluded := lo.Uniq(constraints.ExcludeDays)
	sort.Ints(excluded)
	constraints.ExcludeDays = excluded
	return constraints, nil
}

// AvailabilityCache stores availability reports per academic year. A nil cache is a no-op.
// Each invalidation bumps the year's generation so a report computed before it is never stored.
type AvailabilityCache struct {
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewAvailabilityCache wraps the cache service for availability reports. It returns nil when caching is off.
func NewAvailabilityCache(cache *CacheService, ttl time.Duration, logger *zap.Logger) *AvailabilityCache {
	if cache == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityCache{cache: cache, ttl: ttl, logger: logger, generations: make(map[string]uint64)}
}

// Key builds the cache key. Teacher order is kept because busy reasons are reported in request order.
func (c *AvailabilityCache) Key(academicYearID string, teacherIDs []string, constraints models.AvailabilityConstraints) string {
	excluded := lo.Map(constraints.ExcludeDays, func(day int, _ int) string { return strconv.Itoa(day) })
	return fmt.Sprintf("%s%s:min=%d:exclude=%s", yearKeyPrefix(academicYearID), strings.Join(teacherIDs, ","),
		constraints.MinDuration, strings.Join(excluded, ","))
}

// Get loads a cached report.
func (c *AvailabilityCache) Get(ctx context.Context, key string, dest *models.AvailabilityReport) bool {
	if c == nil {
		return false
	}
	return c.cache.Lookup(ctx, key, dest)
}

// Generation returns the invalidation counter of the academic year.
func (c *AvailabilityCache) Generation(academicYearID string) uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[academicYearID]
}

// Put stores a report unless the year was invalidated after generation was read.
func (c *AvailabilityCache) Put(ctx context.Context, key, academicYearID string, generation uint64, report *models.AvailabilityReport) {
	if c == nil {
		return
	}
	if c.Generation(academicYearID) != generation {
		c.logger.Debug("availability report outdated, not cached", zap.String("academic_year_id", academicYearID))
		return
	}
	c.cache.Store(ctx, key, report, c.ttl)
}

// Invalidate drops every cached report of the academic year.
func (c *AvailabilityCache) Invalidate(ctx context.Context, academicYearID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generations[academicYearID]++
	c.mu.Unlock()
	if _, err := c.cache.Invalidate(ctx, globEscaper.Replace(yearKeyPrefix(academicYearID))+"*"); err != nil {
		c.logger.Warn("availability cache invalidation failed", zap.String("academic_year_id", academicYearID), zap.Error(err))
	}
}

// globEscaper quotes the characters Redis SCAN MATCH treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func yearKeyPrefix(academicYearID string) string {
	return "availability:" + academicYearID + ":"
}
