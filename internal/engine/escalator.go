package engine

import (
	"fmt"
	"strings"

	"discipline-engine/internal/model"
)

// FallbackPunishmentText is substituted whenever text generation
// fails, so the escalation flow never stalls on the external service.
const FallbackPunishmentText = "30 Burpees"

// StudySeverity grades a study deficit percentage.
func StudySeverity(deficitPercent int) model.Severity {
	switch {
	case deficitPercent > 60:
		return model.SeveritySevere
	case deficitPercent > 30:
		return model.SeverityModerate
	default:
		return model.SeverityLight
	}
}

// FailureSeverity escalates with the number of failures of the same
// task label today, this occurrence included.
func FailureSeverity(failCount int) model.Severity {
	switch {
	case failCount >= 4:
		return model.SeverityExtreme
	case failCount >= 2:
		return model.SeverityHard
	default:
		return model.SeverityNormal
	}
}

// PunishmentRequest carries everything the text generator needs to
// produce punishment content: the classification plus recent texts so
// the generator can avoid repeats.
type PunishmentRequest struct {
	TaskLabel      string
	Topic          string
	Reason         FailReason
	Severity       model.Severity
	DeficitPercent int
	FailCount      int
	ScreenMinutes  int
	RecentTexts    []string
}

// BuildPunishmentRequest classifies a punishment-producing consequence.
// openSameLabel is the number of still-open punishments for the same
// task label today, before this occurrence. FailCount always includes
// this occurrence; for study deficits the severity stays deficit-driven.
func BuildPunishmentRequest(task model.Task, cons Consequence, openSameLabel int, recent []string) PunishmentRequest {
	req := PunishmentRequest{
		TaskLabel:   task.Label,
		Topic:       task.Topic,
		Reason:      cons.Reason,
		FailCount:   openSameLabel + 1,
		RecentTexts: recent,
	}
	if cons.Reason == ReasonStudyDeficit {
		req.DeficitPercent = cons.DeficitPercent
		req.Severity = StudySeverity(cons.DeficitPercent)
		return req
	}
	req.Severity = FailureSeverity(req.FailCount)
	return req
}

// ScreenTimeLimitMinutes is the daily phone budget; minutes beyond it
// earn a punishment.
const ScreenTimeLimitMinutes = 120

// ScreenTimeSeverity grades minutes over the daily limit.
func ScreenTimeSeverity(excessMinutes int) model.Severity {
	switch {
	case excessMinutes > 120:
		return model.SeverityExtreme
	case excessMinutes > 60:
		return model.SeverityHard
	default:
		return model.SeverityNormal
	}
}

// BuildScreenTimeRequest classifies a screen-time overshoot. minutes is
// the full reported screen time, not just the excess; openSameLabel
// counts today's earlier screen-time punishments still open.
func BuildScreenTimeRequest(minutes, openSameLabel int, recent []string) PunishmentRequest {
	excess := minutes - ScreenTimeLimitMinutes
	return PunishmentRequest{
		TaskLabel:     "Screen Time",
		Reason:        ReasonScreenTime,
		Severity:      ScreenTimeSeverity(excess),
		FailCount:     openSameLabel + 1,
		ScreenMinutes: minutes,
		RecentTexts:   recent,
	}
}

// Prompt renders the content-generation request as a drill-sergeant
// instruction. The wording mirrors the coaching persona of the rest of
// the app.
func (r PunishmentRequest) Prompt() string {
	var b strings.Builder
	b.WriteString("Act as a brutal drill sergeant. ")
	switch r.Reason {
	case ReasonStudyDeficit:
		fmt.Fprintf(&b, "A recruit missed %d%% of their study time for %q. ", r.DeficitPercent, r.Topic)
	case ReasonScreenTime:
		fmt.Fprintf(&b, "A recruit burned %d minutes on their phone today, %d over the limit. ", r.ScreenMinutes, r.ScreenMinutes-ScreenTimeLimitMinutes)
	default:
		fmt.Fprintf(&b, "A recruit failed the task %q, failure number %d today. ", r.TaskLabel, r.FailCount)
	}
	fmt.Fprintf(&b, "Give them a single, high-impact punishment exercise with %q difficulty. ", r.Severity)
	if len(r.RecentTexts) > 0 {
		fmt.Fprintf(&b, "They recently did: %s. Avoid suggesting those. ", strings.Join(r.RecentTexts, ", "))
	}
	b.WriteString("Respond with ONLY the exercise name and reps/duration. No excuses, no explanations. Example: '100 Burpees'.")
	return b.String()
}
