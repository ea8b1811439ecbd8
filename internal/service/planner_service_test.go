package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"discipline-engine/internal/model"
)

type fakeGoalStore struct {
	created []*model.StudyGoal
}

func (f *fakeGoalStore) Create(ctx context.Context, goal *model.StudyGoal) error {
	f.created = append(f.created, goal)
	return nil
}

func (f *fakeGoalStore) ListByUser(ctx context.Context, userID uint) ([]model.StudyGoal, error) {
	var out []model.StudyGoal
	for _, g := range f.created {
		if g.UserID == userID {
			out = append(out, *g)
		}
	}
	return out, nil
}

// fakeScheduleSource serves one maths study slot per date.
type fakeScheduleSource struct {
	schedules map[string]*model.Schedule
}

func newFakeScheduleSource(dates ...string) *fakeScheduleSource {
	src := &fakeScheduleSource{schedules: make(map[string]*model.Schedule)}
	for i, d := range dates {
		src.schedules[d] = &model.Schedule{ID: uint(i + 1), UserID: 1, Date: d, Tasks: []model.Task{
			{SlotID: 4, Label: "Study Block 1", Kind: model.KindStudy, Subject: "Maths", Time: "09:00", DurationMinutes: 180, Status: model.StatusPending},
		}}
	}
	return src
}

func (f *fakeScheduleSource) GetOrCreate(ctx context.Context, userID uint, date string) (*model.Schedule, error) {
	if sched, ok := f.schedules[date]; ok {
		return sched, nil
	}
	sched := &model.Schedule{UserID: userID, Date: date}
	f.schedules[date] = sched
	return sched, nil
}

func (f *fakeScheduleSource) Save(ctx context.Context, sched *model.Schedule) error {
	f.schedules[sched.Date] = sched
	return nil
}

type scriptedGenerator struct {
	reply string
	err   error
}

func (g scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.reply, g.err
}

func TestCreatePlanMergesManualAndGeneratedSubtopics(t *testing.T) {
	goals := &fakeGoalStore{}
	src := newFakeScheduleSource("2025-03-14", "2025-03-15", "2025-03-16")
	gen := scriptedGenerator{reply: "```json\n[{\"subtopic\": \"Limits\", \"days\": 2}, {\"subtopic\": \"Derivatives\", \"days\": 3}]\n```"}
	svc := NewPlannerService(goals, src, gen, zap.NewNop())

	result, err := svc.CreatePlan(context.Background(), 1, PlanInput{
		Subject:         "Maths",
		MainTopic:       "Calculus",
		StartDate:       time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC),
		ManualSubtopics: []string{"Notation Review"},
	})
	require.NoError(t, err)

	require.Len(t, goals.created, 1)
	subs := goals.created[0].Subtopics
	require.Len(t, subs, 3)
	assert.Equal(t, "Notation Review", subs[0].Name)
	assert.Equal(t, "Limits", subs[1].Name)
	assert.Equal(t, 2, subs[1].EstimatedDays)
	assert.Equal(t, "Derivatives", subs[2].Name)

	// One study slot per date, three dates, three subtopics.
	assert.Equal(t, 3, result.Allocated)
	assert.Zero(t, result.Remaining)
	assert.Equal(t, "Notation Review", src.schedules["2025-03-14"].Tasks[0].Topic)
	assert.Equal(t, "Derivatives", src.schedules["2025-03-16"].Tasks[0].Topic)
}

func TestCreatePlanReportsLeftoverSubtopics(t *testing.T) {
	goals := &fakeGoalStore{}
	src := newFakeScheduleSource("2025-03-14")
	reply := "[{\"subtopic\": \"Limits\", \"days\": 1}, {\"subtopic\": \"Derivatives\", \"days\": 1}, {\"subtopic\": \"Integrals\", \"days\": 1}]"
	svc := NewPlannerService(goals, src, scriptedGenerator{reply: reply}, zap.NewNop())

	result, err := svc.CreatePlan(context.Background(), 1, PlanInput{
		Subject:   "Maths",
		MainTopic: "Calculus",
		StartDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Allocated)
	assert.Equal(t, 2, result.Remaining)
}

func TestCreatePlanFallsBackToManualSubtopics(t *testing.T) {
	goals := &fakeGoalStore{}
	src := newFakeScheduleSource("2025-03-14")
	svc := NewPlannerService(goals, src, scriptedGenerator{err: errors.New("rate limited")}, zap.NewNop())

	result, err := svc.CreatePlan(context.Background(), 1, PlanInput{
		Subject:         "Maths",
		MainTopic:       "Calculus",
		StartDate:       time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		ManualSubtopics: []string{"Limits"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Allocated)
	assert.Zero(t, result.Remaining)
}

func TestCreatePlanRejectsBadInput(t *testing.T) {
	svc := NewPlannerService(&fakeGoalStore{}, newFakeScheduleSource(), scriptedGenerator{}, zap.NewNop())

	_, err := svc.CreatePlan(context.Background(), 1, PlanInput{Subject: " ", MainTopic: "Calculus"})
	require.Error(t, err)

	_, err = svc.CreatePlan(context.Background(), 1, PlanInput{
		Subject:   "Maths",
		MainTopic: "Calculus",
		StartDate: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)

	// No subtopics at all: a failed breakdown with no manual list is an
	// error, not an empty plan.
	_, err = svc.CreatePlan(context.Background(), 1, PlanInput{
		Subject:   "Maths",
		MainTopic: "Calculus",
		StartDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, "[1]", stripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, "[1]", stripCodeFence("```\n[1]\n```"))
	assert.Equal(t, "[1]", stripCodeFence("[1]"))
}
