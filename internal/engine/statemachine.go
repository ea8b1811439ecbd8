package engine

import (
	"errors"
	"fmt"
	"math"

	"discipline-engine/internal/model"
)

// ErrInvalidTransition rejects an event that is not legal in the
// task's current status. No state changes and no consequence follows.
var ErrInvalidTransition = errors.New("invalid task transition")

// studyCompletionThreshold is the logged/planned ratio below which a
// completed study slot still earns a punishment.
const studyCompletionThreshold = 0.90

// Transition applies ev to a copy of task and returns the updated copy
// together with at most one consequence action. The input task is
// never mutated. Re-marking a terminal task requires an undo first.
func Transition(task model.Task, ev Event, studyMinutes int) (model.Task, *Consequence, error) {
	switch ev {
	case EventUndo:
		if task.Status == model.StatusPending {
			return task, nil, fmt.Errorf("undo on pending slot %d: %w", task.SlotID, ErrInvalidTransition)
		}
		var cons *Consequence
		if task.PunishmentID != nil {
			cons = &Consequence{Kind: ConsequenceRetractPunishment, PunishmentID: *task.PunishmentID}
		}
		task.Status = model.StatusPending
		task.MinutesStudied = nil
		task.PunishmentID = nil
		return task, cons, nil

	case EventMarkDone:
		if task.Status != model.StatusPending {
			return task, nil, rejectNonPending(task, ev)
		}
		if task.Kind == model.KindStudy {
			return task, nil, fmt.Errorf("study slot %d needs logged minutes, not a plain done: %w", task.SlotID, ErrInvalidTransition)
		}
		task.Status = model.StatusDone
		return task, nil, nil

	case EventMarkLate, EventMarkSkipped:
		if task.Status != model.StatusPending {
			return task, nil, rejectNonPending(task, ev)
		}
		reason := ReasonLate
		task.Status = model.StatusLate
		if ev == EventMarkSkipped {
			reason = ReasonSkipped
			task.Status = model.StatusSkipped
		}
		return task, &Consequence{Kind: ConsequenceRequestPunishment, Reason: reason}, nil

	case EventLogStudy:
		if task.Kind != model.KindStudy {
			return task, nil, fmt.Errorf("log study on %s slot %d: %w", task.Kind, task.SlotID, ErrInvalidTransition)
		}
		if task.Status != model.StatusPending {
			return task, nil, rejectNonPending(task, ev)
		}
		if studyMinutes < 0 || task.DurationMinutes <= 0 {
			return task, nil, fmt.Errorf("bad study minutes %d for slot %d: %w", studyMinutes, task.SlotID, ErrInvalidTransition)
		}
		minutes := studyMinutes
		task.MinutesStudied = &minutes
		task.Status = model.StatusDone
		ratio := float64(minutes) / float64(task.DurationMinutes)
		if ratio >= studyCompletionThreshold {
			return task, nil, nil
		}
		deficit := int(math.Round(100 * (1 - ratio)))
		return task, &Consequence{
			Kind:           ConsequenceRequestPunishment,
			Reason:         ReasonStudyDeficit,
			DeficitPercent: deficit,
		}, nil

	default:
		return task, nil, fmt.Errorf("unknown event %d: %w", ev, ErrInvalidTransition)
	}
}

func rejectNonPending(task model.Task, ev Event) error {
	return fmt.Errorf("%s on %s slot %d: %w", ev, task.Status, task.SlotID, ErrInvalidTransition)
}

// DayComplete reports whether the whole schedule reached a terminal
// state. An empty schedule is never complete. The caller is expected
// to record the first true result so the end-of-day summary fires only
// once per schedule instance.
func DayComplete(tasks []model.Task) bool {
	if len(tasks) == 0 {
		return false
	}
	for _, t := range tasks {
		if !t.Terminal() {
			return false
		}
	}
	return true
}
