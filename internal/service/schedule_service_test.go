package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/model"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// fakeStore mirrors the repository contract: every load hands out a
// fresh copy, and only Save makes a copy canonical.
type fakeStore struct {
	mu       sync.Mutex
	sched    *model.Schedule
	saves    int
	failSave bool

	// When blockFirst is set, the next Save signals saveEntered and
	// blocks until saveRelease; later saves pass through.
	blockFirst  bool
	saveEntered chan struct{}
	saveRelease chan struct{}
}

func cloneSchedule(s *model.Schedule) *model.Schedule {
	out := *s
	out.Tasks = append([]model.Task(nil), s.Tasks...)
	return &out
}

func (f *fakeStore) GetOrCreate(ctx context.Context, userID uint, date string) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSchedule(f.sched), nil
}

func (f *fakeStore) Save(ctx context.Context, sched *model.Schedule) error {
	f.mu.Lock()
	shouldBlock := f.blockFirst
	f.blockFirst = false
	f.mu.Unlock()
	if shouldBlock {
		f.saveEntered <- struct{}{}
		<-f.saveRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.failSave {
		return errors.New("disk full")
	}
	f.sched = cloneSchedule(sched)
	return nil
}

func (f *fakeStore) current() *model.Schedule {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSchedule(f.sched)
}

type fakePunisher struct {
	mu        sync.Mutex
	nextID    string
	escalated int
	retracted []string
}

func (f *fakePunisher) Escalate(ctx context.Context, userID uint, task model.Task, cons engine.Consequence) (*model.Punishment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalated++
	return &model.Punishment{ID: f.nextID, UserID: userID, TaskSlot: task.SlotID, TaskLabel: task.Label, Text: "50 Squats"}, nil
}

func (f *fakePunisher) Retract(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retracted = append(f.retracted, id)
	return nil
}

type fakePlanner struct {
	mu    sync.Mutex
	refs  []engine.TaskRef
	armed []string
	slots int
}

func (f *fakePlanner) Invalidate(ref engine.TaskRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
}

func (f *fakePlanner) Arm(userID uint, date string, tasks []model.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.armed = append(f.armed, date)
	f.slots = len(tasks)
}

func serviceFixture(t *testing.T, tasks []model.Task) (*ScheduleService, *fakeStore, *fakePunisher, *fakePlanner) {
	t.Helper()
	store := &fakeStore{sched: &model.Schedule{ID: 1, UserID: 1, Date: "2025-03-14", Tasks: tasks}}
	punisher := &fakePunisher{nextID: "p-new"}
	planner := &fakePlanner{}
	clock := fixedClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
	svc := NewScheduleService(store, punisher, clock, zap.NewNop())
	svc.SetReminderPlanner(planner)
	return svc, store, punisher, planner
}

func routineTask(slot int, status model.TaskStatus) model.Task {
	return model.Task{ScheduleID: 1, SlotID: slot, Label: "Morning Exercise", Kind: model.KindRoutine, Time: "06:30", DurationMinutes: 30, Status: status}
}

func TestApplyMarkDonePersistsAndInvalidates(t *testing.T) {
	svc, store, punisher, inv := serviceFixture(t, []model.Task{
		routineTask(1, model.StatusPending),
		routineTask(2, model.StatusPending),
	})
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}

	task, punishment, err := svc.Apply(context.Background(), ref, engine.EventMarkDone, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, task.Status)
	assert.Nil(t, punishment)
	assert.Zero(t, punisher.escalated)
	assert.Equal(t, model.StatusDone, store.current().TaskBySlot(1).Status)
	assert.Equal(t, []engine.TaskRef{ref}, inv.refs)
}

func TestApplySkipCreatesAndLinksPunishment(t *testing.T) {
	svc, store, _, _ := serviceFixture(t, []model.Task{
		routineTask(1, model.StatusPending),
		routineTask(2, model.StatusPending),
	})
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}

	task, punishment, err := svc.Apply(context.Background(), ref, engine.EventMarkSkipped, 0)
	require.NoError(t, err)
	require.NotNil(t, punishment)
	assert.Equal(t, "p-new", punishment.ID)
	require.NotNil(t, task.PunishmentID)
	assert.Equal(t, "p-new", *task.PunishmentID)

	stored := store.current().TaskBySlot(1)
	require.NotNil(t, stored.PunishmentID)
	assert.Equal(t, "p-new", *stored.PunishmentID)
}

func TestFailedSaveRollsBackPunishmentAndState(t *testing.T) {
	svc, store, punisher, inv := serviceFixture(t, []model.Task{routineTask(1, model.StatusPending)})
	store.failSave = true
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}

	_, _, err := svc.Apply(context.Background(), ref, engine.EventMarkSkipped, 0)
	require.Error(t, err)

	// The punishment created before the write is deleted again, the
	// stored task is still pending, and no reminder was invalidated.
	assert.Equal(t, []string{"p-new"}, punisher.retracted)
	assert.Equal(t, model.StatusPending, store.current().TaskBySlot(1).Status)
	assert.Empty(t, inv.refs)
}

func TestUndoRetractsPunishment(t *testing.T) {
	punishmentID := "p-9"
	minutes := 40
	done := routineTask(1, model.StatusLate)
	done.PunishmentID = &punishmentID
	done.MinutesStudied = &minutes
	svc, store, punisher, _ := serviceFixture(t, []model.Task{done, routineTask(2, model.StatusPending)})
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}

	task, _, err := svc.Apply(context.Background(), ref, engine.EventUndo, 0)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Nil(t, task.PunishmentID)
	assert.Nil(t, task.MinutesStudied)
	assert.Equal(t, []string{"p-9"}, punisher.retracted)
	assert.Nil(t, store.current().TaskBySlot(1).PunishmentID)
}

func TestTodayArmsRemindersForUpcomingSlots(t *testing.T) {
	svc, _, _, planner := serviceFixture(t, []model.Task{
		routineTask(1, model.StatusPending),
		routineTask(2, model.StatusPending),
	})

	// A user who first shows up mid-day must still get the rest of the
	// day's reminders, not wait for the midnight rollover.
	sched, err := svc.Today(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03-14"}, planner.armed)
	assert.Equal(t, len(sched.Tasks), planner.slots)
}

func TestConcurrentTransitionForSameTaskRejected(t *testing.T) {
	svc, store, _, _ := serviceFixture(t, []model.Task{routineTask(1, model.StatusPending)})
	store.blockFirst = true
	store.saveEntered = make(chan struct{})
	store.saveRelease = make(chan struct{})
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Apply(context.Background(), ref, engine.EventMarkDone, 0)
		firstDone <- err
	}()
	<-store.saveEntered

	_, _, err := svc.Apply(context.Background(), ref, engine.EventMarkLate, 0)
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(store.saveRelease)
	require.NoError(t, <-firstDone)
	assert.Equal(t, model.StatusDone, store.current().TaskBySlot(1).Status)
}

func TestConcurrentTransitionsOnDifferentSlotsBothPersist(t *testing.T) {
	svc, store, _, _ := serviceFixture(t, []model.Task{
		routineTask(1, model.StatusPending),
		routineTask(2, model.StatusPending),
	})
	store.blockFirst = true
	store.saveEntered = make(chan struct{})
	store.saveRelease = make(chan struct{})

	// Saves carry the whole schedule, so a transition on slot 2 that
	// loads the day while slot 1's save is still in flight would write
	// back a copy with slot 1 pending again. The second transition has
	// to wait for the first save instead.
	firstDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Apply(context.Background(), engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}, engine.EventMarkDone, 0)
		firstDone <- err
	}()
	<-store.saveEntered

	secondDone := make(chan error, 1)
	go func() {
		_, _, err := svc.Apply(context.Background(), engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 2}, engine.EventMarkDone, 0)
		secondDone <- err
	}()

	close(store.saveRelease)
	require.NoError(t, <-firstDone)
	require.NoError(t, <-secondDone)

	final := store.current()
	assert.Equal(t, model.StatusDone, final.TaskBySlot(1).Status)
	assert.Equal(t, model.StatusDone, final.TaskBySlot(2).Status)
}

func TestDayCompleteFiresExactlyOnce(t *testing.T) {
	svc, store, _, _ := serviceFixture(t, []model.Task{
		routineTask(1, model.StatusDone),
		routineTask(2, model.StatusPending),
	})
	var completions int
	svc.SetDayCompleteFunc(func(userID uint, sched *model.Schedule) { completions++ })
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 2}

	_, _, err := svc.Apply(context.Background(), ref, engine.EventMarkSkipped, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, completions)
	require.NotNil(t, store.current().SummarySentAt)

	// Undoing and re-finishing the task must not produce a second
	// summary for the same day.
	_, _, err = svc.Apply(context.Background(), ref, engine.EventUndo, 0)
	require.NoError(t, err)
	_, _, err = svc.Apply(context.Background(), ref, engine.EventMarkDone, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, completions)
}

func TestAutoTransitionSwallowsLostRaces(t *testing.T) {
	svc, store, _, _ := serviceFixture(t, []model.Task{routineTask(1, model.StatusDone)})
	ref := engine.TaskRef{UserID: 1, Date: "2025-03-14", SlotID: 1}

	// Already done: the auto skip loses the race and must not change
	// anything or panic.
	svc.AutoTransition(ref, engine.EventMarkSkipped)
	assert.Equal(t, model.StatusDone, store.current().TaskBySlot(1).Status)
}
