package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/generator"
	"discipline-engine/internal/model"
)

// GoalStore persists study goals.
type GoalStore interface {
	Create(ctx context.Context, goal *model.StudyGoal) error
	ListByUser(ctx context.Context, userID uint) ([]model.StudyGoal, error)
}

// PlanInput is a planner submission. Manual subtopics are optional and
// go in front of the generated breakdown.
type PlanInput struct {
	Subject         string
	MainTopic       string
	StartDate       time.Time
	EndDate         time.Time
	ManualSubtopics []string
}

// PlanResult reports what the allocator managed to place. A non-zero
// Remaining is a normal partial outcome: the range ran out of matching
// study slots.
type PlanResult struct {
	Goal      *model.StudyGoal
	Allocated int
	Remaining int
}

// PlannerService creates multi-day study plans: it breaks the main
// topic into subtopics, stores the goal and distributes the subtopics
// across the date range's study slots.
type PlannerService struct {
	goals     GoalStore
	schedules engine.ScheduleSource
	generator generator.TextGenerator
	logger    *zap.Logger
}

func NewPlannerService(goals GoalStore, schedules engine.ScheduleSource, gen generator.TextGenerator, logger *zap.Logger) *PlannerService {
	return &PlannerService{goals: goals, schedules: schedules, generator: gen, logger: logger}
}

func (s *PlannerService) CreatePlan(ctx context.Context, userID uint, input PlanInput) (*PlanResult, error) {
	if strings.TrimSpace(input.Subject) == "" || strings.TrimSpace(input.MainTopic) == "" {
		return nil, fmt.Errorf("subject and main topic are required")
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, fmt.Errorf("end date %s lies before start date %s",
			engine.DateKey(input.EndDate), engine.DateKey(input.StartDate))
	}

	aiSubs, err := s.breakdown(ctx, input.Subject, input.MainTopic)
	if err != nil {
		if len(input.ManualSubtopics) == 0 {
			return nil, fmt.Errorf("break down %q: %w", input.MainTopic, err)
		}
		s.logger.Warn("topic breakdown failed, using manual subtopics only", zap.Error(err))
	}

	goal := &model.StudyGoal{
		UserID:    userID,
		Subject:   input.Subject,
		MainTopic: input.MainTopic,
		StartDate: engine.DateKey(input.StartDate),
		EndDate:   engine.DateKey(input.EndDate),
	}
	names := make([]string, 0, len(input.ManualSubtopics)+len(aiSubs))
	for _, name := range input.ManualSubtopics {
		goal.Subtopics = append(goal.Subtopics, model.Subtopic{Position: len(goal.Subtopics), Name: name, EstimatedDays: 1})
		names = append(names, name)
	}
	for _, sub := range aiSubs {
		goal.Subtopics = append(goal.Subtopics, model.Subtopic{Position: len(goal.Subtopics), Name: sub.Subtopic, EstimatedDays: sub.Days})
		names = append(names, sub.Subtopic)
	}

	if err := s.goals.Create(ctx, goal); err != nil {
		return nil, fmt.Errorf("save study goal: %w", err)
	}

	remaining, err := engine.AllocateStudyPlan(ctx, s.schedules, userID, input.Subject, input.StartDate, input.EndDate, names)
	if err != nil {
		return nil, fmt.Errorf("allocate subtopics: %w", err)
	}

	s.logger.Info("study plan created",
		zap.Uint("user", userID),
		zap.String("subject", input.Subject),
		zap.Int("subtopics", len(names)),
		zap.Int("remaining", remaining))

	return &PlanResult{Goal: goal, Allocated: len(names) - remaining, Remaining: remaining}, nil
}

// Goals lists the user's stored plans, newest first.
func (s *PlannerService) Goals(ctx context.Context, userID uint) ([]model.StudyGoal, error) {
	return s.goals.ListByUser(ctx, userID)
}

type aiSubtopic struct {
	Subtopic string `json:"subtopic"`
	Days     int    `json:"days"`
}

func (s *PlannerService) breakdown(ctx context.Context, subject, topic string) ([]aiSubtopic, error) {
	prompt := fmt.Sprintf(
		"Break down the topic %q in %q into a logical, ordered list of 8-15 essential sub-topics for a "+
			"long-term study plan. For each, estimate the number of days required (1-3) to master it. "+
			"Respond with ONLY a JSON array of objects: [{\"subtopic\": string, \"days\": number}]",
		topic, subject)

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var subs []aiSubtopic
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &subs); err != nil {
		return nil, fmt.Errorf("%w: parse breakdown: %v", generator.ErrGeneration, err)
	}
	if len(subs) == 0 {
		return nil, fmt.Errorf("%w: empty breakdown", generator.ErrGeneration)
	}
	for i := range subs {
		if subs[i].Days < 1 {
			subs[i].Days = 1
		}
	}
	return subs, nil
}

// stripCodeFence peels a ```json ... ``` wrapper some models insist on.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
