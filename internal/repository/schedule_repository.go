package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"discipline-engine/internal/model"
)

// ScheduleRepository persists per-day task lists. It implements
// engine.ScheduleSource.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// GetByDate loads one user's schedule for a date with tasks in
// schedule order. Returns gorm.ErrRecordNotFound when the date has no
// schedule yet.
func (r *ScheduleRepository) GetByDate(ctx context.Context, userID uint, date string) (*model.Schedule, error) {
	var sched model.Schedule
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("time, slot_id") }).
		Where("user_id = ? AND date = ?", userID, date).
		First(&sched).Error
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

// GetOrCreate returns the date's schedule, creating it from the day
// template on first access.
func (r *ScheduleRepository) GetOrCreate(ctx context.Context, userID uint, date string) (*model.Schedule, error) {
	sched, err := r.GetByDate(ctx, userID, date)
	switch {
	case err == nil:
		return sched, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		sched = &model.Schedule{UserID: userID, Date: date, Tasks: DefaultDayTasks()}
		if err := r.db.WithContext(ctx).Create(sched).Error; err != nil {
			return nil, fmt.Errorf("create schedule %s: %w", date, err)
		}
		return sched, nil
	default:
		return nil, fmt.Errorf("find schedule %s: %w", date, err)
	}
}

// Save upserts the schedule together with its tasks.
func (r *ScheduleRepository) Save(ctx context.Context, sched *model.Schedule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(sched).Error
	})
	if err != nil {
		return fmt.Errorf("save schedule %s: %w", sched.Date, err)
	}
	return nil
}
