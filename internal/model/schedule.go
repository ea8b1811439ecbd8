package model

import (
	"sort"
	"time"
)

// Schedule holds one user's ordered task list for a single date.
// A date's schedule is created on first access and superseded by the
// next date's schedule, never deleted.
type Schedule struct {
	ID            uint   `gorm:"primaryKey"`
	UserID        uint   `gorm:"index:idx_user_date,unique"`
	Date          string `gorm:"index:idx_user_date,unique"` // YYYY-MM-DD
	SummarySentAt *time.Time
	Tasks         []Task `gorm:"foreignKey:ScheduleID"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SortTasks orders tasks by start time, slot id breaking ties.
func (s *Schedule) SortTasks() {
	sort.SliceStable(s.Tasks, func(i, j int) bool {
		if s.Tasks[i].Time != s.Tasks[j].Time {
			return s.Tasks[i].Time < s.Tasks[j].Time
		}
		return s.Tasks[i].SlotID < s.Tasks[j].SlotID
	})
}

// TaskBySlot returns a pointer into the schedule's task slice, or nil.
func (s *Schedule) TaskBySlot(slotID int) *Task {
	for i := range s.Tasks {
		if s.Tasks[i].SlotID == slotID {
			return &s.Tasks[i]
		}
	}
	return nil
}
