package model

import "time"

// StudyGoal is a multi-day plan: an ordered list of subtopics to be
// distributed across the study slots of a date range. Read-only after
// creation.
type StudyGoal struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index"`
	Subject   string
	MainTopic string
	StartDate string // YYYY-MM-DD, inclusive
	EndDate   string // YYYY-MM-DD, inclusive
	Subtopics []Subtopic `gorm:"foreignKey:StudyGoalID"`
	CreatedAt time.Time
}

// Subtopic is one ordered entry of a study goal.
type Subtopic struct {
	ID            uint `gorm:"primaryKey"`
	StudyGoalID   uint `gorm:"index"`
	Position      int
	Name          string
	EstimatedDays int
	TargetDate    string
}
