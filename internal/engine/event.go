package engine

// Event is a requested task transition.
type Event int

const (
	EventMarkDone Event = iota
	EventMarkLate
	EventMarkSkipped
	EventLogStudy
	EventUndo
)

func (e Event) String() string {
	switch e {
	case EventMarkDone:
		return "mark_done"
	case EventMarkLate:
		return "mark_late"
	case EventMarkSkipped:
		return "mark_skipped"
	case EventLogStudy:
		return "log_study"
	case EventUndo:
		return "undo"
	default:
		return "unknown"
	}
}

// FailReason explains why a punishment was requested.
type FailReason string

const (
	ReasonLate         FailReason = "late"
	ReasonSkipped      FailReason = "skipped"
	ReasonStudyDeficit FailReason = "study_deficit"
	ReasonScreenTime   FailReason = "screen_time"
)

// ConsequenceKind distinguishes the two consequence actions a
// transition can yield.
type ConsequenceKind int

const (
	ConsequenceRequestPunishment ConsequenceKind = iota
	ConsequenceRetractPunishment
)

// Consequence is the at-most-one action derived from a transition.
// DeficitPercent is set only for study deficits; PunishmentID only for
// retractions.
type Consequence struct {
	Kind           ConsequenceKind
	Reason         FailReason
	DeficitPercent int
	PunishmentID   string
}

// TaskRef identifies one task slot of one user's day across the
// scheduler, the coordinator and the stores.
type TaskRef struct {
	UserID uint
	Date   string
	SlotID int
}
