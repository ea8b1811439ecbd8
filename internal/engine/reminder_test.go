package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"discipline-engine/internal/model"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type signalSink struct {
	notified    chan TaskRef
	alarmed     chan TaskRef
	transitions chan Event
}

func newSignalSink() *signalSink {
	return &signalSink{
		notified:    make(chan TaskRef, 4),
		alarmed:     make(chan TaskRef, 4),
		transitions: make(chan Event, 4),
	}
}

func (s *signalSink) Notify(ref TaskRef, label string) { s.notified <- ref }
func (s *signalSink) Alarm(ref TaskRef, label string)  { s.alarmed <- ref }
func (s *signalSink) AutoTransition(ref TaskRef, ev Event) {
	s.transitions <- ev
}

func waitFor[T any](t *testing.T, ch chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func assertSilent[T any](t *testing.T, ch chan T, wait time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
		t.Fatalf("unexpected %s", what)
	case <-time.After(wait):
	}
}

// reminderFixture arms one pending routine task starting 30ms after
// the fake clock's now.
func reminderFixture(t *testing.T, window time.Duration) (*ReminderScheduler, *signalSink, TaskRef) {
	t.Helper()
	now := time.Date(2025, 3, 14, 8, 59, 59, 970_000_000, time.Local)
	sink := newSignalSink()
	sched := NewReminderScheduler(fixedClock{now}, window, sink, sink, sink, zap.NewNop())
	t.Cleanup(sched.Stop)

	tasks := []model.Task{{
		SlotID:          1,
		Time:            "09:00",
		DurationMinutes: 5,
		Kind:            model.KindRoutine,
		Status:          model.StatusPending,
		Label:           "Wake Up & Drink Water",
	}}
	ref := TaskRef{UserID: 7, Date: DateKey(now), SlotID: 1}
	sched.Arm(ref.UserID, ref.Date, tasks)
	return sched, sink, ref
}

func TestReminderExpiresIntoSkip(t *testing.T) {
	_, sink, ref := reminderFixture(t, 50*time.Millisecond)

	fired := waitFor(t, sink.notified, "reminder")
	assert.Equal(t, ref, fired)

	alarmed := waitFor(t, sink.alarmed, "alarm")
	assert.Equal(t, ref, alarmed)
	assert.Equal(t, EventMarkSkipped, waitFor(t, sink.transitions, "auto transition"))
}

func TestReminderConfirmedBecomesDone(t *testing.T) {
	sched, sink, ref := reminderFixture(t, 500*time.Millisecond)

	waitFor(t, sink.notified, "reminder")
	require.True(t, sched.Confirm(ref))

	assert.Equal(t, EventMarkDone, waitFor(t, sink.transitions, "auto transition"))
	assertSilent(t, sink.alarmed, 600*time.Millisecond, "alarm after confirmation")

	// The pair is resolved; a second confirm has nothing to act on.
	assert.False(t, sched.Confirm(ref))
}

func TestConfirmBeforeReminderFiredReportsFalse(t *testing.T) {
	sched, _, ref := reminderFixture(t, 50*time.Millisecond)
	// The wake-up has not fired yet, so no confirmation window is open.
	assert.False(t, sched.Confirm(TaskRef{UserID: ref.UserID, Date: ref.Date, SlotID: 99}))
}

func TestInvalidateCancelsPendingReminder(t *testing.T) {
	sched, sink, ref := reminderFixture(t, 50*time.Millisecond)

	sched.Invalidate(ref)
	assertSilent(t, sink.notified, 200*time.Millisecond, "reminder after invalidation")
	assertSilent(t, sink.transitions, 100*time.Millisecond, "transition after invalidation")
}

func TestInvalidateCancelsConfirmationWindow(t *testing.T) {
	sched, sink, ref := reminderFixture(t, 50*time.Millisecond)

	waitFor(t, sink.notified, "reminder")
	sched.Invalidate(ref)
	assertSilent(t, sink.alarmed, 200*time.Millisecond, "alarm after invalidation")
}

func TestArmSkipsStartedAndNonHabitTasks(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.Local)
	sink := newSignalSink()
	sched := NewReminderScheduler(fixedClock{now}, time.Minute, sink, sink, sink, zap.NewNop())
	defer sched.Stop()

	tasks := []model.Task{
		{SlotID: 1, Time: "11:00", Kind: model.KindRoutine, Status: model.StatusPending, DurationMinutes: 10},
		{SlotID: 2, Time: "12:30", Kind: model.KindStudy, Status: model.StatusPending, DurationMinutes: 60},
		{SlotID: 3, Time: "12:30", Kind: model.KindMeal, Status: model.StatusDone, DurationMinutes: 20},
	}
	sched.Arm(7, DateKey(now), tasks)

	sched.mu.Lock()
	defer sched.mu.Unlock()
	assert.Empty(t, sched.pending)
}
