package model

import (
	"strconv"
	"strings"
	"time"
)

// TaskKind classifies a scheduled slot.
type TaskKind string

const (
	KindRoutine TaskKind = "routine"
	KindStudy   TaskKind = "study"
	KindMeal    TaskKind = "meal"
	KindBreak   TaskKind = "break"
)

// TaskStatus is the completion state of a slot. Pending is the only
// non-terminal state; the other three can only be left via undo.
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusDone    TaskStatus = "done"
	StatusLate    TaskStatus = "late"
	StatusSkipped TaskStatus = "skipped"
)

// Task is one scheduled unit of a day. SlotID identifies the task
// within its day's schedule and stays stable across edits; the gorm
// primary key is storage-only.
type Task struct {
	ID              uint   `gorm:"primaryKey"`
	ScheduleID      uint   `gorm:"index:idx_schedule_slot,unique"`
	SlotID          int    `gorm:"index:idx_schedule_slot,unique"`
	Time            string // HH:MM start of the slot
	DurationMinutes int
	Kind            TaskKind
	Status          TaskStatus `gorm:"default:pending"`
	Label           string
	Subject         string
	Topic           string
	Details         string
	MinutesStudied  *int
	PunishmentID    *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StartMinute parses the HH:MM start time into minutes since midnight.
func (t Task) StartMinute() (int, bool) {
	parts := strings.Split(t.Time, ":")
	if len(parts) != 2 {
		return 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// Terminal reports whether the task left the pending state.
func (t Task) Terminal() bool {
	return t.Status == StatusDone || t.Status == StatusLate || t.Status == StatusSkipped
}
