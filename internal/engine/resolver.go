package engine

import "discipline-engine/internal/model"

// ActiveTask returns the task whose half-open window
// [start, start+duration) contains nowMinute, or nil. Storage does not
// prevent overlapping windows, so the first match in schedule order
// wins; the tie-break is deterministic rather than silently arbitrary.
// Windows running past midnight count as a same-day offset and are not
// matched by early-morning minutes of the next day.
func ActiveTask(tasks []model.Task, nowMinute int) *model.Task {
	for i := range tasks {
		start, ok := tasks[i].StartMinute()
		if !ok || tasks[i].DurationMinutes <= 0 {
			continue
		}
		if nowMinute >= start && nowMinute < start+tasks[i].DurationMinutes {
			return &tasks[i]
		}
	}
	return nil
}
