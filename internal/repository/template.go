package repository

import "discipline-engine/internal/model"

// DefaultDayTasks is the template a fresh date's schedule starts from.
func DefaultDayTasks() []model.Task {
	return []model.Task{
		{SlotID: 1, Time: "08:00", DurationMinutes: 5, Kind: model.KindRoutine, Status: model.StatusPending, Label: "Wake Up & Drink Water"},
		{SlotID: 2, Time: "08:05", DurationMinutes: 15, Kind: model.KindRoutine, Status: model.StatusPending, Label: "Morning Exercise"},
		{SlotID: 3, Time: "08:20", DurationMinutes: 10, Kind: model.KindRoutine, Status: model.StatusPending, Label: "Brush & Skincare"},
		{SlotID: 4, Time: "08:30", DurationMinutes: 180, Kind: model.KindStudy, Status: model.StatusPending, Label: "Study Slot 1", Subject: "Maths", Topic: "Calculus - Derivatives"},
		{SlotID: 5, Time: "11:30", DurationMinutes: 30, Kind: model.KindMeal, Status: model.StatusPending, Label: "Breakfast"},
		{SlotID: 6, Time: "12:00", DurationMinutes: 180, Kind: model.KindStudy, Status: model.StatusPending, Label: "Study Slot 2", Subject: "Chemistry", Topic: "Organic - Alkanes"},
		{SlotID: 7, Time: "15:00", DurationMinutes: 20, Kind: model.KindMeal, Status: model.StatusPending, Label: "Lunch"},
		{SlotID: 8, Time: "15:20", DurationMinutes: 190, Kind: model.KindBreak, Status: model.StatusPending, Label: "Sports Break"},
		{SlotID: 9, Time: "18:30", DurationMinutes: 15, Kind: model.KindMeal, Status: model.StatusPending, Label: "Post-Play Meal", Details: "Oats and a glass of milk"},
		{SlotID: 10, Time: "18:45", DurationMinutes: 5, Kind: model.KindRoutine, Status: model.StatusPending, Label: "Face Wash & Mouthwash"},
		{SlotID: 11, Time: "18:50", DurationMinutes: 40, Kind: model.KindBreak, Status: model.StatusPending, Label: "Nap Session"},
		{SlotID: 12, Time: "19:30", DurationMinutes: 120, Kind: model.KindStudy, Status: model.StatusPending, Label: "Study Slot 3", Subject: "Physics", Topic: "Kinematics"},
		{SlotID: 13, Time: "21:30", DurationMinutes: 180, Kind: model.KindStudy, Status: model.StatusPending, Label: "Study Slot 4", Subject: "Revision", Topic: "Review Todays Notes"},
		{SlotID: 14, Time: "00:30", DurationMinutes: 15, Kind: model.KindRoutine, Status: model.StatusPending, Label: "Plan Next Day"},
		{SlotID: 15, Time: "00:45", DurationMinutes: 5, Kind: model.KindRoutine, Status: model.StatusPending, Label: "Final Skincare"},
	}
}
