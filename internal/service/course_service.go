package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/elective-seat-api/internal/dto"
	"github.com/noah-isme/elective-seat-api/internal/models"
	"github.com/noah-isme/elective-seat-api/internal/repository"
	appErrors "github.com/noah-isme/elective-seat-api/pkg/errors"
)

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateDetailsTx(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	CountRegistrations(ctx context.Context, courseID string) (int, error)
	Delete(ctx context.Context, id string) error
}

type rosterReader interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Registration, error)
}

// CourseService serves the catalogue and the administrative course lifecycle.
// Capacity edits go through the seat ledger like any other counter change.
type CourseService struct {
	repo          courseStore
	registrations rosterReader
	ledger        ledgerStore
	seats         *SeatLedger
	cache         *CacheService
	notifier      seatNotifier
	validator     *validator.Validate
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(repo courseStore, registrations rosterReader, ledger ledgerStore, seats *SeatLedger, cache *CacheService, notifier seatNotifier, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if seats == nil {
		seats = NewSeatLedger(DefaultOfferTTL, nil)
	}
	_ = validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		return models.DayOfWeek(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
	return &CourseService{
		repo:          repo,
		registrations: registrations,
		ledger:        ledger,
		seats:         seats,
		cache:         cache,
		notifier:      notifier,
		validator:     validate,
		metrics:       metrics,
		logger:        logger,
	}
}

// List returns the catalogue with live counters.
func (s *CourseService) List(ctx context.Context, query dto.CourseListQuery) ([]models.Course, error) {
	filter := models.CourseFilter{Department: strings.TrimSpace(query.Department), Search: strings.TrimSpace(query.Search)}
	key := courseListKey(filter.Department, filter.Search)

	var cached []models.Course
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}
	courses, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	s.cache.Set(ctx, key, courses)
	return courses, nil
}

// Get returns one course with live counters and schedules.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	var cached models.Course
	if s.cache.Get(ctx, courseItemKey(id), &cached) {
		return &cached, nil
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, ledgerError(err, "course")
	}
	s.cache.Set(ctx, courseItemKey(id), course)
	return course, nil
}

// Create registers a new course with every seat free and an empty waitlist.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest) (*models.Course, error) {
	schedules, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, req.CourseCode, ""); err != nil {
		return nil, err
	}

	course := &models.Course{
		CourseCode:       strings.TrimSpace(req.CourseCode),
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Department:       strings.TrimSpace(req.Department),
		Professor:        strings.TrimSpace(req.Professor),
		Credits:          req.Credits,
		TotalSeats:       req.TotalSeats,
		RemainingSeats:   req.TotalSeats,
		WaitlistCapacity: req.WaitlistCapacity,
		Schedules:        schedules,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Storage(err, "failed to create course")
	}
	s.invalidate(ctx, course.ID)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("course_code", course.CourseCode))
	return course, nil
}

// Update replaces the course details and schedules and applies capacity
// changes through the ledger. Seats added while students wait are offered to
// them immediately.
func (s *CourseService) Update(ctx context.Context, id string, req dto.CourseRequest) (*dto.CourseUpdateResponse, error) {
	schedules, err := s.validateRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCodeFree(ctx, req.CourseCode, id); err != nil {
		return nil, err
	}

	var (
		updated  models.Course
		promoted []models.Registration
	)
	err = runLedger(ctx, s.ledger, s.metrics, "adjust_capacity", id, func(tx repository.LedgerTx) error {
		course := tx.Course()
		course.CourseCode = strings.TrimSpace(req.CourseCode)
		course.Title = strings.TrimSpace(req.Title)
		course.Description = req.Description
		course.Department = strings.TrimSpace(req.Department)
		course.Professor = strings.TrimSpace(req.Professor)
		course.Credits = req.Credits
		course.Schedules = schedules
		if err := s.repo.UpdateDetailsTx(ctx, tx.Exec(), course); err != nil {
			return err
		}
		offers, err := s.seats.AdjustCapacity(ctx, tx, req.TotalSeats, req.WaitlistCapacity)
		if err != nil {
			return err
		}
		promoted = offers
		updated = *course
		return nil
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, ledgerError(err, "course")
	}

	s.invalidate(ctx, id)
	s.metrics.RecordPromotions(len(promoted))
	notifySafely(s.notifier, s.logger, func(n seatNotifier) {
		n.SeatStateChanged(updated.SeatState())
		for _, reg := range promoted {
			n.OfferPromoted(updated, reg)
		}
	})
	s.logger.Info("course updated",
		zap.String("course_id", id),
		zap.Int("total_seats", updated.TotalSeats),
		zap.Int("promoted", len(promoted)),
	)
	if promoted == nil {
		promoted = []models.Registration{}
	}
	return &dto.CourseUpdateResponse{Course: &updated, Promoted: promoted}, nil
}

// Delete removes a course that no registration references.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return ledgerError(err, "course")
	}
	count, err := s.repo.CountRegistrations(ctx, id)
	if err != nil {
		return appErrors.Storage(err, "failed to count registrations")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrCourseInUse, fmt.Sprintf("course still has %d registrations", count))
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNothingDeleted) {
			return appErrors.Clone(appErrors.ErrCourseInUse, "course gained registrations while deleting")
		}
		return appErrors.Storage(err, "failed to delete course")
	}
	s.invalidate(ctx, id)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

// Roster returns the course and its registrations in arrival order.
func (s *CourseService) Roster(ctx context.Context, id string) (*models.Course, []models.Registration, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, ledgerError(err, "course")
	}
	regs, err := s.registrations.ListByCourse(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Storage(err, "failed to load roster")
	}
	return course, regs, nil
}

func (s *CourseService) validateRequest(req dto.CourseRequest) ([]models.CourseSchedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	schedules := make([]models.CourseSchedule, 0, len(req.Schedules))
	for _, item := range req.Schedules {
		sched := models.CourseSchedule{
			DayOfWeek: models.DayOfWeek(strings.ToUpper(item.DayOfWeek)),
			StartTime: item.StartTime,
			EndTime:   item.EndTime,
		}
		start, end, err := sched.Minutes()
		if err != nil || start >= end {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("schedule on %s must start before it ends", sched.DayOfWeek))
		}
		sched.StartTime = models.FormatClock(start)
		sched.EndTime = models.FormatClock(end)
		for _, other := range schedules {
			if sched.Overlaps(other) {
				return nil, appErrors.Clone(appErrors.ErrValidation,
					fmt.Sprintf("schedules overlap on %s", sched.DayOfWeek))
			}
		}
		schedules = append(schedules, sched)
	}
	return schedules, nil
}

func (s *CourseService) ensureCodeFree(ctx context.Context, code, excludeID string) error {
	exists, err := s.repo.ExistsByCode(ctx, strings.TrimSpace(code), excludeID)
	if err != nil {
		return appErrors.Storage(err, "failed to check course code")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	return nil
}

func (s *CourseService) invalidate(ctx context.Context, id string) {
	_ = s.cache.InvalidateCourse(ctx, id)
}
