package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"discipline-engine/internal/model"
)

// PunishmentRepository persists consequence records.
type PunishmentRepository struct {
	db *gorm.DB
}

func NewPunishmentRepository(db *gorm.DB) *PunishmentRepository {
	return &PunishmentRepository{db: db}
}

func (r *PunishmentRepository) Create(ctx context.Context, p *model.Punishment) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create punishment: %w", err)
	}
	return nil
}

func (r *PunishmentRepository) Get(ctx context.Context, id string) (*model.Punishment, error) {
	var p model.Punishment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PunishmentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Delete(&model.Punishment{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete punishment: %w", err)
	}
	return nil
}

// ListOpen returns the user's uncleared punishments, oldest first.
func (r *PunishmentRepository) ListOpen(ctx context.Context, userID uint) ([]model.Punishment, error) {
	var punishments []model.Punishment
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND cleared = ?", userID, false).
		Order("created_at ASC").
		Find(&punishments).Error; err != nil {
		return nil, err
	}
	return punishments, nil
}

// ClearAll flips every open punishment of the user to cleared.
func (r *PunishmentRepository) ClearAll(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).
		Model(&model.Punishment{}).
		Where("user_id = ? AND cleared = ?", userID, false).
		Update("cleared", true).Error; err != nil {
		return fmt.Errorf("clear punishments: %w", err)
	}
	return nil
}
