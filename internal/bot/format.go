package bot

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"discipline-engine/internal/engine"
	"discipline-engine/internal/model"
)

func statusIcon(status model.TaskStatus) string {
	switch status {
	case model.StatusDone:
		return "✅"
	case model.StatusLate:
		return "🕒"
	case model.StatusSkipped:
		return "❌"
	default:
		return "▫️"
	}
}

func formatTimeline(sched *model.Schedule, active *model.Task) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Schedule for %s</b>\n", sched.Date))
	if active != nil {
		b.WriteString(fmt.Sprintf("▶️ Now: <b>%s</b>\n", escape(taskTitle(*active))))
		if active.Details != "" {
			b.WriteString(fmt.Sprintf("    %s\n", escape(active.Details)))
		}
	} else {
		b.WriteString("▶️ Now: free time\n")
	}
	b.WriteByte('\n')

	for _, task := range sched.Tasks {
		marker := ""
		if active != nil && task.SlotID == active.SlotID {
			marker = " ◀️"
		}
		b.WriteString(fmt.Sprintf("%s <code>%s</code> %s (%dm)%s\n",
			statusIcon(task.Status), task.Time, escape(taskTitle(task)), task.DurationMinutes, marker))
		if task.Kind == model.KindStudy && task.MinutesStudied != nil {
			b.WriteString(fmt.Sprintf("    studied %d of %d minutes\n", *task.MinutesStudied, task.DurationMinutes))
		}
	}
	if engine.DayComplete(sched.Tasks) {
		b.WriteString("\n🏁 Every slot is closed.")
	}
	return strings.TrimSpace(b.String())
}

func taskTitle(task model.Task) string {
	if task.Kind == model.KindStudy {
		title := task.Label
		if task.Subject != "" {
			title = task.Subject
		}
		if task.Topic != "" {
			return fmt.Sprintf("%s: %s", title, task.Topic)
		}
		return title
	}
	return task.Label
}

// timelineKeyboard builds one action row per task: resolve buttons for
// pending slots, an undo button for closed ones.
func timelineKeyboard(sched *model.Schedule) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, task := range sched.Tasks {
		target := fmt.Sprintf("%s:%d", sched.Date, task.SlotID)
		tag := fmt.Sprintf("#%d %s", task.SlotID, shortLabel(taskTitle(task), 14))
		if task.Status == model.StatusPending {
			if task.Kind == model.KindStudy {
				rows = append(rows, tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("📚 Log "+tag, cbStudyLogPrefix+target),
					tgbotapi.NewInlineKeyboardButtonData("⏭", cbSkipPrefix+target),
				))
				continue
			}
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ "+tag, cbDonePrefix+target),
				tgbotapi.NewInlineKeyboardButtonData("🕒", cbLatePrefix+target),
				tgbotapi.NewInlineKeyboardButtonData("⏭", cbSkipPrefix+target),
			))
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("↩️ Undo "+tag, cbUndoPrefix+target),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatPunishments(open []model.Punishment) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚡️ <b>Open punishments: %d</b>\n\n", len(open)))
	for i, p := range open {
		b.WriteString(fmt.Sprintf("%d. <b>%s</b> — %s (%s)\n", i+1, escape(p.Text), escape(p.TaskLabel), p.Severity))
	}
	b.WriteString("\nServe them, then /clearpunishments.")
	return b.String()
}

func punishmentKeyboard(open []model.Punishment) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, p := range open {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📖 How to do #%d", i+1), cbHowToPrefix+p.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func transitionMessage(task *model.Task, ev engine.Event) string {
	switch ev {
	case engine.EventUndo:
		return fmt.Sprintf("↩️ <b>%s</b> is back to pending.", escape(taskTitle(*task)))
	case engine.EventMarkLate:
		return fmt.Sprintf("🕒 <b>%s</b> done late. It still counts against you.", escape(taskTitle(*task)))
	case engine.EventMarkSkipped:
		return fmt.Sprintf("❌ <b>%s</b> skipped.", escape(taskTitle(*task)))
	case engine.EventLogStudy:
		if task.Status == model.StatusDone && task.MinutesStudied != nil {
			return fmt.Sprintf("📚 Logged %d minutes for <b>%s</b>.", *task.MinutesStudied, escape(taskTitle(*task)))
		}
		return fmt.Sprintf("📚 Study logged for <b>%s</b>.", escape(taskTitle(*task)))
	default:
		return fmt.Sprintf("✅ <b>%s</b> done. Next.", escape(taskTitle(*task)))
	}
}

func shortLabel(label string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(label, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}
