package engine

import (
	"context"
	"fmt"
	"time"

	"discipline-engine/internal/model"
)

// ScheduleSource is the narrow slice of the schedule store the
// allocator needs: fetch-or-default one date and persist it back.
type ScheduleSource interface {
	GetOrCreate(ctx context.Context, userID uint, date string) (*model.Schedule, error)
	Save(ctx context.Context, schedule *model.Schedule) error
}

// AllocateStudyPlan walks every date from start to end inclusive and
// assigns subtopics to that date's matching study slots in schedule
// order, one subtopic per slot, resetting each slot to pending. Each
// modified date is persisted before the walk advances. Dates without a
// matching slot are skipped. The returned count is how many subtopics
// were left unassigned; running out of slots is a normal outcome, not
// an error.
func AllocateStudyPlan(ctx context.Context, src ScheduleSource, userID uint, subject string, start, end time.Time, subtopics []string) (int, error) {
	idx := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if idx >= len(subtopics) {
			break
		}
		date := DateKey(d)
		sched, err := src.GetOrCreate(ctx, userID, date)
		if err != nil {
			return len(subtopics) - idx, fmt.Errorf("load schedule for %s: %w", date, err)
		}
		sched.SortTasks()

		changed := false
		for i := range sched.Tasks {
			if idx >= len(subtopics) {
				break
			}
			slot := &sched.Tasks[i]
			if slot.Kind != model.KindStudy || slot.Subject != subject {
				continue
			}
			slot.Topic = subtopics[idx]
			slot.Status = model.StatusPending
			idx++
			changed = true
		}
		if changed {
			if err := src.Save(ctx, sched); err != nil {
				return len(subtopics) - idx, fmt.Errorf("save schedule for %s: %w", date, err)
			}
		}
	}
	return len(subtopics) - idx, nil
}
