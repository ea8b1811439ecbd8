package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/generator"
	"discipline-engine/internal/model"
)

// recentTextLimit caps how many earlier punishment texts the prompt
// carries to steer the generator away from repeats.
const recentTextLimit = 5

// PunishmentStore is the persistence surface for consequence records.
type PunishmentStore interface {
	Create(ctx context.Context, p *model.Punishment) error
	Get(ctx context.Context, id string) (*model.Punishment, error)
	Delete(ctx context.Context, id string) error
	ListOpen(ctx context.Context, userID uint) ([]model.Punishment, error)
	ClearAll(ctx context.Context, userID uint) error
}

// PunishmentService turns consequence actions into stored punishment
// records. Severity classification is pure (engine); only the content
// text comes from the external generator, and a generation failure
// degrades to the fixed fallback text instead of stalling the flow.
type PunishmentService struct {
	store     PunishmentStore
	generator generator.TextGenerator
	clock     engine.Clock
	logger    *zap.Logger
}

func NewPunishmentService(store PunishmentStore, gen generator.TextGenerator, clock engine.Clock, logger *zap.Logger) *PunishmentService {
	return &PunishmentService{store: store, generator: gen, clock: clock, logger: logger}
}

// Escalate creates the punishment for a RequestPunishment consequence.
// The task carries its post-transition state.
func (s *PunishmentService) Escalate(ctx context.Context, userID uint, task model.Task, cons engine.Consequence) (*model.Punishment, error) {
	open, err := s.store.ListOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open punishments: %w", err)
	}

	req := engine.BuildPunishmentRequest(task, cons, s.sameLabelToday(open, task.Label), recentTexts(open))
	return s.create(ctx, userID, task.SlotID, req)
}

// EscalateScreenTime records the consequence for a daily screen-time
// report. Reports within the limit produce no punishment.
func (s *PunishmentService) EscalateScreenTime(ctx context.Context, userID uint, minutes int) (*model.Punishment, error) {
	if minutes <= engine.ScreenTimeLimitMinutes {
		return nil, nil
	}
	open, err := s.store.ListOpen(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list open punishments: %w", err)
	}

	req := engine.BuildScreenTimeRequest(minutes, s.sameLabelToday(open, "Screen Time"), recentTexts(open))
	return s.create(ctx, userID, 0, req)
}

func (s *PunishmentService) create(ctx context.Context, userID uint, taskSlot int, req engine.PunishmentRequest) (*model.Punishment, error) {
	text, err := s.generator.Generate(ctx, req.Prompt())
	if err != nil {
		s.logger.Warn("punishment text generation failed, using fallback", zap.Error(err))
		text = engine.FallbackPunishmentText
	}

	punishment := &model.Punishment{
		ID:        uuid.NewString(),
		UserID:    userID,
		TaskSlot:  taskSlot,
		TaskLabel: req.TaskLabel,
		Text:      text,
		Severity:  req.Severity,
		FailCount: req.FailCount,
	}
	if err := s.store.Create(ctx, punishment); err != nil {
		return nil, err
	}
	return punishment, nil
}

func (s *PunishmentService) sameLabelToday(open []model.Punishment, label string) int {
	now := s.clock.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	count := 0
	for _, p := range open {
		if p.TaskLabel == label && !p.CreatedAt.Before(startOfDay) {
			count++
		}
	}
	return count
}

func recentTexts(open []model.Punishment) []string {
	recent := make([]string, 0, recentTextLimit)
	for _, p := range open[max(0, len(open)-recentTextLimit):] {
		recent = append(recent, p.Text)
	}
	return recent
}

// Retract deletes a punishment after its task was undone.
func (s *PunishmentService) Retract(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

func (s *PunishmentService) Get(ctx context.Context, id string) (*model.Punishment, error) {
	return s.store.Get(ctx, id)
}

// Open lists the user's punishment queue, oldest first.
func (s *PunishmentService) Open(ctx context.Context, userID uint) ([]model.Punishment, error) {
	return s.store.ListOpen(ctx, userID)
}

// ClearAll marks the whole queue as served.
func (s *PunishmentService) ClearAll(ctx context.Context, userID uint) error {
	return s.store.ClearAll(ctx, userID)
}
