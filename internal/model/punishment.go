package model

import "time"

// Severity is the escalation tier of a punishment. Study deficits use
// light/moderate/severe; repeated non-study failures use
// normal/hard/extreme.
type Severity string

const (
	SeverityLight    Severity = "light"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityNormal   Severity = "normal"
	SeverityHard     Severity = "hard"
	SeverityExtreme  Severity = "extreme"
)

// Punishment is a consequence record for a failed or deficient task.
// FailCount counts how many times the same task label failed today,
// including the occurrence that created this record.
type Punishment struct {
	ID        string `gorm:"primaryKey"`
	UserID    uint   `gorm:"index"`
	TaskSlot  int
	TaskLabel string
	Text      string
	Severity  Severity
	FailCount int
	Cleared   bool `gorm:"default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
