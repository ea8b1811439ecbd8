package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/model"
)

// ErrTransitionInFlight rejects a second event for a task whose
// previous transition has not been persisted yet. Transitions for one
// task are strictly serialized; across tasks no ordering is enforced.
var ErrTransitionInFlight = errors.New("another transition for this task is in flight")

// ErrTaskNotFound reports an unknown slot id for the day.
var ErrTaskNotFound = errors.New("task not found in schedule")

// ScheduleStore is the persistence surface the coordinator needs.
type ScheduleStore interface {
	GetOrCreate(ctx context.Context, userID uint, date string) (*model.Schedule, error)
	Save(ctx context.Context, schedule *model.Schedule) error
}

// Punisher creates and retracts consequence records.
type Punisher interface {
	Escalate(ctx context.Context, userID uint, task model.Task, cons engine.Consequence) (*model.Punishment, error)
	Retract(ctx context.Context, id string) error
}

// ReminderPlanner arms and cancels per-slot reminder timers.
type ReminderPlanner interface {
	Arm(userID uint, date string, tasks []model.Task)
	Invalidate(ref engine.TaskRef)
}

// DayCompleteFunc is invoked once per schedule when its last open task
// reaches a terminal state.
type DayCompleteFunc func(userID uint, sched *model.Schedule)

// ScheduleService owns the day's in-memory schedule state and drives
// every task transition through the state machine. The durable store
// is written before callers see the new status, so a failed write
// leaves both memory and store unchanged.
type ScheduleService struct {
	store    ScheduleStore
	punisher Punisher
	clock    engine.Clock
	logger   *zap.Logger

	mu        sync.Mutex
	inFlight  map[engine.TaskRef]struct{}
	userLocks map[uint]*sync.Mutex

	reminders     ReminderPlanner
	onDayComplete DayCompleteFunc
}

func NewScheduleService(store ScheduleStore, punisher Punisher, clock engine.Clock, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		store:     store,
		punisher:  punisher,
		clock:     clock,
		logger:    logger,
		inFlight:  make(map[engine.TaskRef]struct{}),
		userLocks: make(map[uint]*sync.Mutex),
	}
}

// SetReminderPlanner wires the reminder scheduler in after
// construction; the two depend on each other.
func (s *ScheduleService) SetReminderPlanner(p ReminderPlanner) {
	s.reminders = p
}

func (s *ScheduleService) SetDayCompleteFunc(fn DayCompleteFunc) {
	s.onDayComplete = fn
}

// Today returns the user's schedule for the current date, creating it
// from the template on first access. Reminders for the day's upcoming
// slots are armed on every call; arming is idempotent, so a user who
// shows up mid-day gets the rest of the day covered without waiting
// for the rollover job.
func (s *ScheduleService) Today(ctx context.Context, userID uint) (*model.Schedule, error) {
	date := engine.DateKey(s.clock.Now())
	sched, err := s.store.GetOrCreate(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	if s.reminders != nil {
		s.reminders.Arm(userID, date, sched.Tasks)
	}
	return sched, nil
}

// ActiveTask resolves the currently running slot of today's schedule.
func (s *ScheduleService) ActiveTask(ctx context.Context, userID uint) (*model.Task, error) {
	sched, err := s.Today(ctx, userID)
	if err != nil {
		return nil, err
	}
	sched.SortTasks()
	return engine.ActiveTask(sched.Tasks, engine.MinuteOfDay(s.clock.Now())), nil
}

// Apply runs one task transition end to end: state machine, punishment
// escalation or retraction, persistence, reminder invalidation and
// day-complete detection. It returns the task's new state and the
// punishment created for it, if any.
func (s *ScheduleService) Apply(ctx context.Context, ref engine.TaskRef, ev engine.Event, studyMinutes int) (*model.Task, *model.Punishment, error) {
	if !s.begin(ref) {
		return nil, nil, ErrTransitionInFlight
	}
	defer s.end(ref)

	// Saves write the whole schedule, so transitions on different tasks
	// of one user's day must not interleave between load and save or
	// the later write reverts the earlier one. Same-task concurrency is
	// already rejected above; cross-task concurrency waits here.
	userLock := s.lockFor(ref.UserID)
	userLock.Lock()
	defer userLock.Unlock()

	sched, err := s.store.GetOrCreate(ctx, ref.UserID, ref.Date)
	if err != nil {
		return nil, nil, fmt.Errorf("load schedule: %w", err)
	}
	task := sched.TaskBySlot(ref.SlotID)
	if task == nil {
		return nil, nil, fmt.Errorf("slot %d on %s: %w", ref.SlotID, ref.Date, ErrTaskNotFound)
	}

	next, cons, err := engine.Transition(*task, ev, studyMinutes)
	if err != nil {
		return nil, nil, err
	}

	var created *model.Punishment
	if cons != nil && cons.Kind == engine.ConsequenceRequestPunishment {
		created, err = s.punisher.Escalate(ctx, ref.UserID, next, *cons)
		if err != nil {
			return nil, nil, fmt.Errorf("escalate punishment: %w", err)
		}
		id := created.ID
		next.PunishmentID = &id
	}

	*task = next
	if err := s.store.Save(ctx, sched); err != nil {
		if created != nil {
			// Roll back the punishment so the queue does not show a
			// consequence for a transition that never landed.
			if derr := s.punisher.Retract(context.WithoutCancel(ctx), created.ID); derr != nil {
				s.logger.Warn("orphaned punishment after failed save", zap.String("punishment", created.ID), zap.Error(derr))
			}
		}
		return nil, nil, fmt.Errorf("persist schedule: %w", err)
	}

	if cons != nil && cons.Kind == engine.ConsequenceRetractPunishment {
		// The schedule no longer references the punishment; a failed
		// delete leaves a stray row, not an inconsistent task.
		if err := s.punisher.Retract(ctx, cons.PunishmentID); err != nil {
			s.logger.Warn("retract punishment", zap.String("punishment", cons.PunishmentID), zap.Error(err))
		}
	}

	if s.reminders != nil {
		s.reminders.Invalidate(ref)
	}

	s.logger.Info("task transition",
		zap.Uint("user", ref.UserID),
		zap.Int("slot", ref.SlotID),
		zap.String("event", ev.String()),
		zap.String("status", string(task.Status)))

	s.maybeCompleteDay(ctx, ref.UserID, sched)

	return task, created, nil
}

// AutoTransition is the reminder scheduler's entry point. Errors are
// logged, not surfaced: the race with a concurrent manual action is
// benign and resolves in favor of whoever persisted first.
func (s *ScheduleService) AutoTransition(ref engine.TaskRef, ev engine.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, _, err := s.Apply(ctx, ref, ev, 0)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrInvalidTransition), errors.Is(err, ErrTransitionInFlight):
		s.logger.Debug("auto transition lost the race", zap.Int("slot", ref.SlotID), zap.Error(err))
	default:
		s.logger.Error("auto transition failed", zap.Int("slot", ref.SlotID), zap.Error(err))
	}
}

func (s *ScheduleService) maybeCompleteDay(ctx context.Context, userID uint, sched *model.Schedule) {
	if sched.SummarySentAt != nil || !engine.DayComplete(sched.Tasks) {
		return
	}
	now := s.clock.Now()
	sched.SummarySentAt = &now
	if err := s.store.Save(ctx, sched); err != nil {
		sched.SummarySentAt = nil
		s.logger.Warn("mark day complete", zap.String("date", sched.Date), zap.Error(err))
		return
	}
	if s.onDayComplete != nil {
		s.onDayComplete(userID, sched)
	}
}

func (s *ScheduleService) lockFor(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

func (s *ScheduleService) begin(ref engine.TaskRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[ref]; busy {
		return false
	}
	s.inFlight[ref] = struct{}{}
	return true
}

func (s *ScheduleService) end(ref engine.TaskRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, ref)
}
