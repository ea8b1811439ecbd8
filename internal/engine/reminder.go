package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"discipline-engine/internal/model"
)

// Notifier surfaces a reminder to the user. Fire-and-forget.
type Notifier interface {
	Notify(ref TaskRef, label string)
}

// AlarmSink signals an expired confirmation window. Fire-and-forget.
type AlarmSink interface {
	Alarm(ref TaskRef, label string)
}

// AutoTransitioner receives the transitions that originate from the
// scheduler instead of a direct user action.
type AutoTransitioner interface {
	AutoTransition(ref TaskRef, ev Event)
}

// ReminderScheduler arms one-shot wake-ups for upcoming routine and
// meal slots. On firing it notifies the user and opens a confirmation
// window; confirmation marks the task done, expiry raises the alarm
// and skips it. At most one reminder/confirmation pair exists per task
// and a cancelled timer never fires late.
type ReminderScheduler struct {
	clock      Clock
	window     time.Duration
	notifier   Notifier
	alarm      AlarmSink
	transition AutoTransitioner
	logger     *zap.Logger

	mu      sync.Mutex
	pending map[TaskRef]*reminderEntry
	stopped bool
}

type reminderEntry struct {
	label           string
	timer           *time.Timer
	awaitingConfirm bool
}

func NewReminderScheduler(clock Clock, window time.Duration, notifier Notifier, alarm AlarmSink, transition AutoTransitioner, logger *zap.Logger) *ReminderScheduler {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &ReminderScheduler{
		clock:      clock,
		window:     window,
		notifier:   notifier,
		alarm:      alarm,
		transition: transition,
		logger:     logger,
		pending:    make(map[TaskRef]*reminderEntry),
	}
}

// Arm schedules a wake-up for every pending routine or meal task of
// the given schedule whose start lies ahead of now. A task with an
// outstanding reminder keeps it; nothing is re-armed.
func (s *ReminderScheduler) Arm(userID uint, date string, tasks []model.Task) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	for _, t := range tasks {
		if t.Kind != model.KindRoutine && t.Kind != model.KindMeal {
			continue
		}
		if t.Status != model.StatusPending {
			continue
		}
		startAt, err := time.ParseInLocation("2006-01-02 15:04", date+" "+t.Time, now.Location())
		if err != nil {
			continue
		}
		delay := startAt.Sub(now)
		if delay <= 0 {
			continue
		}
		ref := TaskRef{UserID: userID, Date: date, SlotID: t.SlotID}
		if _, exists := s.pending[ref]; exists {
			continue
		}
		entry := &reminderEntry{label: t.Label}
		entry.timer = time.AfterFunc(delay, func() { s.fire(ref) })
		s.pending[ref] = entry
		s.logger.Debug("reminder armed",
			zap.Uint("user", userID),
			zap.Int("slot", t.SlotID),
			zap.Duration("in", delay))
	}
}

func (s *ReminderScheduler) fire(ref TaskRef) {
	s.mu.Lock()
	entry, ok := s.pending[ref]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	entry.awaitingConfirm = true
	entry.timer = time.AfterFunc(s.window, func() { s.expire(ref) })
	label := entry.label
	s.mu.Unlock()

	s.notifier.Notify(ref, label)
}

func (s *ReminderScheduler) expire(ref TaskRef) {
	s.mu.Lock()
	entry, ok := s.pending[ref]
	if !ok || !entry.awaitingConfirm || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, ref)
	label := entry.label
	s.mu.Unlock()

	s.alarm.Alarm(ref, label)
	s.transition.AutoTransition(ref, EventMarkSkipped)
}

// Confirm resolves an open confirmation window as acknowledged,
// marking the task done. It reports false when no window is open for
// the task (not fired yet, already expired, or never armed).
func (s *ReminderScheduler) Confirm(ref TaskRef) bool {
	s.mu.Lock()
	entry, ok := s.pending[ref]
	if !ok || !entry.awaitingConfirm {
		s.mu.Unlock()
		return false
	}
	entry.timer.Stop()
	delete(s.pending, ref)
	s.mu.Unlock()

	s.transition.AutoTransition(ref, EventMarkDone)
	return true
}

// Invalidate cancels any outstanding reminder or confirmation timer
// for the task. Called whenever the task changes state through a path
// other than the scheduler, so a stale timer cannot fire afterwards.
func (s *ReminderScheduler) Invalidate(ref TaskRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.pending[ref]; ok {
		entry.timer.Stop()
		delete(s.pending, ref)
	}
}

// Stop cancels every outstanding timer. The scheduler cannot be armed
// again afterwards.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for ref, entry := range s.pending {
		entry.timer.Stop()
		delete(s.pending, ref)
	}
}
