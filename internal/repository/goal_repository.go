package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"discipline-engine/internal/model"
)

// GoalRepository persists long-term study plans. Goals are read-only
// after creation.
type GoalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

func (r *GoalRepository) Create(ctx context.Context, goal *model.StudyGoal) error {
	if err := r.db.WithContext(ctx).Create(goal).Error; err != nil {
		return fmt.Errorf("create study goal: %w", err)
	}
	return nil
}

func (r *GoalRepository) ListByUser(ctx context.Context, userID uint) ([]model.StudyGoal, error) {
	var goals []model.StudyGoal
	if err := r.db.WithContext(ctx).
		Preload("Subtopics", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}
