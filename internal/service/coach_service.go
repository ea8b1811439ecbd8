package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"discipline-engine/internal/generator"
	"discipline-engine/internal/model"
)

const (
	fallbackKickstart    = "Focus and execute. You know the mission."
	fallbackReport       = "Day complete. Review your performance and prepare for tomorrow."
	fallbackInstructions = "Keep your core tight, move with control, and do not cheat the reps."
)

// CoachService produces the motivational texts around the day: the
// kickstart message, the end-of-day report and exercise instructions.
// Every call degrades to a fixed line when generation fails.
type CoachService struct {
	generator generator.TextGenerator
	logger    *zap.Logger
}

func NewCoachService(gen generator.TextGenerator, logger *zap.Logger) *CoachService {
	return &CoachService{generator: gen, logger: logger}
}

// DailyKickstart builds a short motivational message from the day's
// key tasks.
func (s *CoachService) DailyKickstart(ctx context.Context, sched *model.Schedule) string {
	var key []string
	for _, task := range sched.Tasks {
		if len(key) == 3 {
			break
		}
		if task.Kind == model.KindStudy || strings.Contains(task.Label, "Exercise") {
			key = append(key, task.Label)
		}
	}
	prompt := fmt.Sprintf(
		"My schedule today includes: %s. Give me a short, powerful, one-paragraph motivational message to start my day strong. Be inspiring but firm.",
		strings.Join(key, ", "))

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("kickstart generation failed", zap.Error(err))
		return fallbackKickstart
	}
	return text
}

// EndOfDayReport reviews the completed schedule.
func (s *CoachService) EndOfDayReport(ctx context.Context, sched *model.Schedule, openPunishments int) string {
	var done, late, skipped int
	for _, task := range sched.Tasks {
		switch task.Status {
		case model.StatusDone:
			done++
		case model.StatusLate:
			late++
		case model.StatusSkipped:
			skipped++
		}
	}
	prompt := fmt.Sprintf(
		"You are reviewing my day. Tasks done: %d, late: %d, skipped: %d. Punishments earned: %d. "+
			"Write a brief, constructive end-of-day report. Acknowledge successes, be firm about failures, "+
			"and give a single critical piece of advice for tomorrow.",
		done, late, skipped, openPunishments)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("end-of-day report generation failed", zap.Error(err))
		return fallbackReport
	}
	return text
}

// PunishmentInstructions explains how to perform a punishment exercise
// with proper form.
func (s *CoachService) PunishmentInstructions(ctx context.Context, p *model.Punishment) string {
	prompt := fmt.Sprintf(
		"Act as an expert personal trainer. Explain why the punishment %q was given for failing the task %q, "+
			"then give clear step-by-step instructions on how to perform the exercise with perfect form.",
		p.Text, p.TaskLabel)

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Warn("instructions generation failed", zap.Error(err))
		return fallbackInstructions
	}
	return text
}
